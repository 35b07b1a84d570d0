// Package ddl renders generated partition children into CREATE TABLE
// statements. Rendering is purely textual; nothing here touches a
// database.
package ddl

import (
	"fmt"
	"strings"

	"github.com/tablekit/partgen/pkg/datum"
	"github.com/tablekit/partgen/pkg/partition"
)

// QuoteIdentifier makes a name safe to splice into SQL text.
func QuoteIdentifier(name string) string {
	// Replace any existing quotes with double quotes to escape them
	name = strings.Replace(name, `"`, `""`, -1)
	// Wrap the entire name in quotes
	return fmt.Sprintf(`"%s"`, name)
}

// QualifiedName renders namespace.name with both parts quoted. An empty
// namespace yields just the quoted name.
func QualifiedName(namespace, name string) string {
	if namespace == "" {
		return QuoteIdentifier(name)
	}
	return QuoteIdentifier(namespace) + "." + QuoteIdentifier(name)
}

// FormatLiteral renders a datum as a SQL literal. Numeric and boolean
// values go bare; everything else is single-quoted with embedded quotes
// doubled. A nil value is the NULL keyword.
func FormatLiteral(v datum.Value) string {
	if v == nil {
		return "NULL"
	}
	switch v.Type() {
	case datum.TypeInt2, datum.TypeInt4, datum.TypeInt8, datum.TypeFloat8, datum.TypeBool:
		return v.String()
	default:
		return "'" + strings.Replace(v.String(), "'", "''", -1) + "'"
	}
}

// CreateTable renders one child as a CREATE TABLE ... PARTITION OF
// statement without a trailing semicolon.
func CreateTable(c *partition.Child) string {
	var b strings.Builder

	b.WriteString("CREATE ")
	switch c.Persistence {
	case partition.PersistenceUnlogged:
		b.WriteString("UNLOGGED ")
	case partition.PersistenceTemporary:
		b.WriteString("TEMPORARY ")
	}
	b.WriteString("TABLE ")
	b.WriteString(QualifiedName(c.Namespace, c.Name))
	b.WriteString("\n    PARTITION OF ")
	b.WriteString(QualifiedName(c.Namespace, c.Parent))

	if encs := encodingElements(c.Encodings); encs != "" {
		b.WriteString(" (\n")
		b.WriteString(encs)
		b.WriteString("\n    )")
	}

	b.WriteString("\n    ")
	b.WriteString(boundClause(&c.Bound))

	if c.PartitionBy != nil {
		b.WriteString("\n    PARTITION BY ")
		b.WriteString(strings.ToUpper(c.PartitionBy.Strategy.String()))
		b.WriteString(" (")
		b.WriteString(QuoteIdentifier(c.PartitionBy.Column))
		b.WriteString(")")
	}

	if c.AccessMethod != "" {
		b.WriteString("\n    USING ")
		b.WriteString(QuoteIdentifier(c.AccessMethod))
	}

	if len(c.Options) > 0 {
		b.WriteString("\n    WITH (")
		for i, o := range c.Options {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(o.Name)
			b.WriteString("='")
			b.WriteString(strings.Replace(o.Value, "'", "''", -1))
			b.WriteString("'")
		}
		b.WriteString(")")
	}

	if c.Tablespace != "" {
		b.WriteString("\n    TABLESPACE ")
		b.WriteString(QuoteIdentifier(c.Tablespace))
	}

	if len(c.DistributedBy) > 0 {
		quoted := make([]string, len(c.DistributedBy))
		for i, col := range c.DistributedBy {
			quoted[i] = QuoteIdentifier(col)
		}
		b.WriteString("\n    DISTRIBUTED BY (")
		b.WriteString(strings.Join(quoted, ", "))
		b.WriteString(")")
	}

	return b.String()
}

// boundClause renders the FOR VALUES clause, or DEFAULT for the
// catch-all child.
func boundClause(bound *partition.BoundSpec) string {
	if bound.IsDefault {
		return "DEFAULT"
	}
	switch bound.Strategy {
	case partition.StrategyRange:
		return "FOR VALUES FROM (" + boundList(bound.Lower) + ") TO (" + boundList(bound.Upper) + ")"
	case partition.StrategyList:
		vals := make([]string, len(bound.ListValues))
		for i, v := range bound.ListValues {
			vals[i] = FormatLiteral(v)
		}
		return "FOR VALUES IN (" + strings.Join(vals, ", ") + ")"
	}
	return "DEFAULT"
}

func boundList(bounds []partition.Bound) string {
	parts := make([]string, len(bounds))
	for i, b := range bounds {
		switch b.Kind {
		case partition.BoundMinValue:
			parts[i] = "MINVALUE"
		case partition.BoundMaxValue:
			parts[i] = "MAXVALUE"
		default:
			parts[i] = FormatLiteral(b.Value)
		}
	}
	return strings.Join(parts, ", ")
}

// encodingElements renders the COLUMN ... ENCODING directives that go
// inside the PARTITION OF element list.
func encodingElements(encs []partition.EncodingDirective) string {
	if len(encs) == 0 {
		return ""
	}
	lines := make([]string, len(encs))
	for i, e := range encs {
		var b strings.Builder
		b.WriteString("        ")
		if e.Default {
			b.WriteString("DEFAULT COLUMN ENCODING (")
		} else {
			b.WriteString("COLUMN ")
			b.WriteString(QuoteIdentifier(e.Column))
			b.WriteString(" ENCODING (")
		}
		for j, o := range e.Options {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(o.Name)
			b.WriteString("='")
			b.WriteString(strings.Replace(o.Value, "'", "''", -1))
			b.WriteString("'")
		}
		b.WriteString(")")
		lines[i] = b.String()
	}
	return strings.Join(lines, ",\n")
}

// Statements renders the whole child tree depth-first into executable
// statements: each child's CREATE TABLE, an ownership change when an
// owner is set, then the child's own children.
func Statements(children []partition.Child) []string {
	var out []string
	for i := range children {
		c := &children[i]
		out = append(out, CreateTable(c))
		if c.Owner != "" {
			out = append(out, fmt.Sprintf("ALTER TABLE %s OWNER TO %s",
				QualifiedName(c.Namespace, c.Name), QuoteIdentifier(c.Owner)))
		}
		out = append(out, Statements(c.Children)...)
	}
	return out
}

// Script renders the child tree as a single executable SQL script.
func Script(children []partition.Child) string {
	stmts := Statements(children)
	if len(stmts) == 0 {
		return ""
	}
	return strings.Join(stmts, ";\n\n") + ";\n"
}
