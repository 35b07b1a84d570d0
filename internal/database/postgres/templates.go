package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tablekit/partgen/pkg/datum"
	"github.com/tablekit/partgen/pkg/partition"
)

// TemplateStore persists shared sub-partition templates in a jsonb
// table keyed by root relation and level. Storing an existing key is a
// no-op, so the first template declared for a level wins.
type TemplateStore struct {
	pool *pgxpool.Pool
}

func NewTemplateStore(pool *pgxpool.Pool) *TemplateStore {
	return &TemplateStore{pool: pool}
}

// EnsureTable creates the backing schema and table when they do not
// exist yet.
func (s *TemplateStore) EnsureTable(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS partgen`); err != nil {
		return fmt.Errorf("error creating template schema: %w", err)
	}
	const ddl = `
CREATE TABLE IF NOT EXISTS partgen.partition_template (
    relation   text        NOT NULL,
    level      int         NOT NULL,
    definition jsonb       NOT NULL,
    created_at timestamptz NOT NULL DEFAULT now(),
    PRIMARY KEY (relation, level)
)`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("error creating template table: %w", err)
	}
	return nil
}

func (s *TemplateStore) StoreTemplate(ctx context.Context, relation string, level int, def *partition.Definition) error {
	data, err := json.Marshal(encodeDefinition(def))
	if err != nil {
		return fmt.Errorf("error encoding template for %q level %d: %w", relation, level, err)
	}
	const query = `
INSERT INTO partgen.partition_template (relation, level, definition)
VALUES ($1, $2, $3)
ON CONFLICT (relation, level) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query, relation, level, data); err != nil {
		return fmt.Errorf("error storing template for %q level %d: %w", relation, level, err)
	}
	return nil
}

func (s *TemplateStore) GetTemplate(ctx context.Context, relation string, level int) (*partition.Definition, error) {
	const query = `
SELECT definition FROM partgen.partition_template WHERE relation = $1 AND level = $2`
	var data []byte
	err := s.pool.QueryRow(ctx, query, relation, level).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading template for %q level %d: %w", relation, level, err)
	}
	var enc jsonDefinition
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("error decoding template for %q level %d: %w", relation, level, err)
	}
	return decodeDefinition(&enc)
}

func (s *TemplateStore) RemoveTemplate(ctx context.Context, relation string, level int) error {
	const query = `
DELETE FROM partgen.partition_template WHERE relation = $1 AND level = $2`
	if _, err := s.pool.Exec(ctx, query, relation, level); err != nil {
		return fmt.Errorf("error removing template for %q level %d: %w", relation, level, err)
	}
	return nil
}

// The jsonb shape stores every literal as a (type, string) pair using
// the literal rendering the datum package can re-parse. Source
// locations are not persisted.

type jsonDefinition struct {
	Elements   []jsonElement  `json:"elements"`
	Encodings  []jsonEncoding `json:"encodings,omitempty"`
	IsTemplate bool           `json:"is_template,omitempty"`
}

type jsonElement struct {
	Name         string          `json:"name,omitempty"`
	IsDefault    bool            `json:"is_default,omitempty"`
	Range        *jsonRange      `json:"range,omitempty"`
	List         *jsonList       `json:"list,omitempty"`
	Options      []jsonOption    `json:"options,omitempty"`
	AccessMethod string          `json:"access_method,omitempty"`
	Tablespace   string          `json:"tablespace,omitempty"`
	Encodings    []jsonEncoding  `json:"encodings,omitempty"`
	SubDef       *jsonDefinition `json:"sub_def,omitempty"`
}

type jsonRange struct {
	Start        *jsonExpr `json:"start,omitempty"`
	End          *jsonExpr `json:"end,omitempty"`
	EndInclusive bool      `json:"end_inclusive,omitempty"`
	Every        *jsonExpr `json:"every,omitempty"`
}

type jsonList struct {
	Values [][]jsonExpr `json:"values"`
}

type jsonExpr struct {
	Type    string  `json:"type,omitempty"`
	Value   *string `json:"value"`
	Collate string  `json:"collate,omitempty"`
}

type jsonOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type jsonEncoding struct {
	Column  string       `json:"column,omitempty"`
	Default bool         `json:"default,omitempty"`
	Options []jsonOption `json:"options,omitempty"`
}

func encodeDefinition(def *partition.Definition) *jsonDefinition {
	if def == nil {
		return nil
	}
	enc := &jsonDefinition{IsTemplate: def.IsTemplate}
	for _, elem := range def.Elements {
		enc.Elements = append(enc.Elements, encodeElement(elem))
	}
	enc.Encodings = encodeEncodings(def.Encodings)
	return enc
}

func encodeElement(elem partition.Element) jsonElement {
	out := jsonElement{
		Name:         elem.Name,
		IsDefault:    elem.IsDefault,
		Options:      encodeOptions(elem.Options),
		AccessMethod: elem.AccessMethod,
		Tablespace:   elem.Tablespace,
		Encodings:    encodeEncodings(elem.Encodings),
		SubDef:       encodeDefinition(elem.SubDef),
	}
	if elem.Range != nil {
		out.Range = &jsonRange{
			Start:        encodeExpr(elem.Range.Start),
			End:          encodeExpr(elem.Range.End),
			EndInclusive: elem.Range.EndInclusive,
			Every:        encodeExpr(elem.Range.Every),
		}
	}
	if elem.List != nil {
		values := make([][]jsonExpr, 0, len(elem.List.Values))
		for _, tuple := range elem.List.Values {
			row := make([]jsonExpr, 0, len(tuple))
			for i := range tuple {
				row = append(row, *encodeExpr(&tuple[i]))
			}
			values = append(values, row)
		}
		out.List = &jsonList{Values: values}
	}
	return out
}

func encodeExpr(e *partition.Expr) *jsonExpr {
	if e == nil {
		return nil
	}
	out := &jsonExpr{Collate: string(e.Collate)}
	if e.Value != nil {
		literal := e.Value.String()
		out.Type = string(e.Value.Type())
		out.Value = &literal
	}
	return out
}

func encodeOptions(opts []partition.Option) []jsonOption {
	if len(opts) == 0 {
		return nil
	}
	out := make([]jsonOption, 0, len(opts))
	for _, o := range opts {
		out = append(out, jsonOption{Name: o.Name, Value: o.Value})
	}
	return out
}

func encodeEncodings(encs []partition.EncodingDirective) []jsonEncoding {
	if len(encs) == 0 {
		return nil
	}
	out := make([]jsonEncoding, 0, len(encs))
	for _, e := range encs {
		out = append(out, jsonEncoding{Column: e.Column, Default: e.Default, Options: encodeOptions(e.Options)})
	}
	return out
}

func decodeDefinition(enc *jsonDefinition) (*partition.Definition, error) {
	if enc == nil {
		return nil, nil
	}
	def := &partition.Definition{IsTemplate: enc.IsTemplate}
	for _, elem := range enc.Elements {
		decoded, err := decodeElement(elem)
		if err != nil {
			return nil, err
		}
		def.Elements = append(def.Elements, decoded)
	}
	def.Encodings = decodeEncodings(enc.Encodings)
	return def, nil
}

func decodeElement(enc jsonElement) (partition.Element, error) {
	elem := partition.Element{
		Name:         enc.Name,
		IsDefault:    enc.IsDefault,
		Options:      decodeOptions(enc.Options),
		AccessMethod: enc.AccessMethod,
		Tablespace:   enc.Tablespace,
		Encodings:    decodeEncodings(enc.Encodings),
	}
	if enc.SubDef != nil {
		sub, err := decodeDefinition(enc.SubDef)
		if err != nil {
			return elem, err
		}
		elem.SubDef = sub
	}
	if enc.Range != nil {
		start, err := decodeStoredExpr(enc.Range.Start)
		if err != nil {
			return elem, err
		}
		end, err := decodeStoredExpr(enc.Range.End)
		if err != nil {
			return elem, err
		}
		every, err := decodeStoredExpr(enc.Range.Every)
		if err != nil {
			return elem, err
		}
		elem.Range = &partition.RangeSpec{
			Start:        start,
			End:          end,
			EndInclusive: enc.Range.EndInclusive,
			Every:        every,
		}
	}
	if enc.List != nil {
		values := make([][]partition.Expr, 0, len(enc.List.Values))
		for _, row := range enc.List.Values {
			tuple := make([]partition.Expr, 0, len(row))
			for _, cell := range row {
				expr, err := decodeStoredExpr(&cell)
				if err != nil {
					return elem, err
				}
				tuple = append(tuple, *expr)
			}
			values = append(values, tuple)
		}
		elem.List = &partition.ListSpec{Values: values}
	}
	return elem, nil
}

func decodeStoredExpr(enc *jsonExpr) (*partition.Expr, error) {
	if enc == nil {
		return nil, nil
	}
	expr := &partition.Expr{Collate: datum.Collation(enc.Collate)}
	if enc.Value == nil {
		return expr, nil
	}
	v, err := datum.Parse(datum.Type(enc.Type), *enc.Value)
	if err != nil {
		return nil, fmt.Errorf("error decoding stored literal: %w", err)
	}
	expr.Value = v
	return expr, nil
}

func decodeOptions(opts []jsonOption) []partition.Option {
	if len(opts) == 0 {
		return nil
	}
	out := make([]partition.Option, 0, len(opts))
	for _, o := range opts {
		out = append(out, partition.Option{Name: o.Name, Value: o.Value})
	}
	return out
}

func decodeEncodings(encs []jsonEncoding) []partition.EncodingDirective {
	if len(encs) == 0 {
		return nil
	}
	out := make([]partition.EncodingDirective, 0, len(encs))
	for _, e := range encs {
		out = append(out, partition.EncodingDirective{Column: e.Column, Default: e.Default, Options: decodeOptions(e.Options)})
	}
	return out
}
