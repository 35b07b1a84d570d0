// Package datum models partition key values and the type-specific
// operations (comparison, addition, casts) the expansion engine needs.
// Each supported column type contributes a concrete Value implementation;
// arithmetic is resolved through an operator registry keyed by operand
// types, so embedders can extend the set without touching the engine.
package datum

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type identifies a column or literal type by its canonical PostgreSQL name.
type Type string

const (
	TypeInt2        Type = "int2"
	TypeInt4        Type = "int4"
	TypeInt8        Type = "int8"
	TypeFloat8      Type = "float8"
	TypeBool        Type = "bool"
	TypeText        Type = "text"
	TypeDate        Type = "date"
	TypeTimestamp   Type = "timestamp"
	TypeTimestampTZ Type = "timestamptz"
	TypeInterval    Type = "interval"
)

// SQLName returns the spelled-out SQL name used in error messages.
func (t Type) SQLName() string {
	switch t {
	case TypeInt2:
		return "smallint"
	case TypeInt4:
		return "integer"
	case TypeInt8:
		return "bigint"
	case TypeFloat8:
		return "double precision"
	case TypeBool:
		return "boolean"
	case TypeTimestamp:
		return "timestamp without time zone"
	case TypeTimestampTZ:
		return "timestamp with time zone"
	default:
		return string(t)
	}
}

// ParseType normalizes a declared column type name to its canonical Type.
func ParseType(name string) (Type, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	// Strip a typmod suffix like varchar(32).
	if i := strings.IndexByte(n, '('); i > 0 {
		n = strings.TrimSpace(n[:i])
	}
	switch n {
	case "int2", "smallint":
		return TypeInt2, nil
	case "int4", "int", "integer":
		return TypeInt4, nil
	case "int8", "bigint":
		return TypeInt8, nil
	case "float8", "float", "double precision", "real", "float4":
		return TypeFloat8, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "text", "varchar", "character varying", "char", "character", "bpchar", "name":
		return TypeText, nil
	case "date":
		return TypeDate, nil
	case "timestamp", "timestamp without time zone":
		return TypeTimestamp, nil
	case "timestamptz", "timestamp with time zone":
		return TypeTimestampTZ, nil
	case "interval":
		return TypeInterval, nil
	default:
		return "", fmt.Errorf("unsupported partition key type %q", name)
	}
}

// Value is a single non-null typed value. NULL is represented by a nil
// Value at the call sites that allow it.
type Value interface {
	Type() Type
	// String renders the value in its literal form (unquoted).
	String() string
}

// Int2 is a smallint value.
type Int2 struct{ V int16 }

func (v Int2) Type() Type     { return TypeInt2 }
func (v Int2) String() string { return strconv.FormatInt(int64(v.V), 10) }

// Int4 is an integer value.
type Int4 struct{ V int32 }

func (v Int4) Type() Type     { return TypeInt4 }
func (v Int4) String() string { return strconv.FormatInt(int64(v.V), 10) }

// Int8 is a bigint value.
type Int8 struct{ V int64 }

func (v Int8) Type() Type     { return TypeInt8 }
func (v Int8) String() string { return strconv.FormatInt(v.V, 10) }

// Float8 is a double precision value.
type Float8 struct{ V float64 }

func (v Float8) Type() Type     { return TypeFloat8 }
func (v Float8) String() string { return strconv.FormatFloat(v.V, 'g', -1, 64) }

// Bool is a boolean value.
type Bool struct{ V bool }

func (v Bool) Type() Type { return TypeBool }
func (v Bool) String() string {
	if v.V {
		return "true"
	}
	return "false"
}

// Text is a character string value. Comparison order depends on the
// collation supplied by the caller.
type Text struct{ S string }

func (v Text) Type() Type     { return TypeText }
func (v Text) String() string { return v.S }

// Date is a calendar date without time or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func (v Date) Type() Type { return TypeDate }
func (v Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", v.Year, int(v.Month), v.Day)
}

// Time returns midnight UTC of the date.
func (v Date) Time() time.Time {
	return time.Date(v.Year, v.Month, v.Day, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates a time to its calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Timestamp is a timestamp without time zone, held in UTC.
type Timestamp struct{ T time.Time }

func (v Timestamp) Type() Type     { return TypeTimestamp }
func (v Timestamp) String() string { return formatTimestamp(v.T) }

// TimestampTZ is a timestamp with time zone, held in UTC.
type TimestampTZ struct{ T time.Time }

func (v TimestampTZ) Type() Type     { return TypeTimestampTZ }
func (v TimestampTZ) String() string { return formatTimestamp(v.T) + "+00" }

func formatTimestamp(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02 15:04:05")
	}
	return t.Format("2006-01-02 15:04:05.999999")
}

// Parse converts a literal string into a Value of the requested type.
func Parse(t Type, s string) (Value, error) {
	raw := strings.TrimSpace(s)
	switch t {
	case TypeInt2:
		n, err := strconv.ParseInt(raw, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid input %q for type %s", s, t.SQLName())
		}
		return Int2{V: int16(n)}, nil
	case TypeInt4:
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid input %q for type %s", s, t.SQLName())
		}
		return Int4{V: int32(n)}, nil
	case TypeInt8:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid input %q for type %s", s, t.SQLName())
		}
		return Int8{V: n}, nil
	case TypeFloat8:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid input %q for type %s", s, t.SQLName())
		}
		return Float8{V: f}, nil
	case TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid input %q for type %s", s, t.SQLName())
		}
		return Bool{V: b}, nil
	case TypeText:
		return Text{S: s}, nil
	case TypeDate:
		tm, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("invalid input %q for type date", s)
		}
		return DateOf(tm), nil
	case TypeTimestamp:
		tm, err := parseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid input %q for type %s", s, t.SQLName())
		}
		return Timestamp{T: tm}, nil
	case TypeTimestampTZ:
		tm, err := parseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid input %q for type %s", s, t.SQLName())
		}
		return TimestampTZ{T: tm.UTC()}, nil
	case TypeInterval:
		return ParseInterval(raw)
	default:
		return nil, fmt.Errorf("unsupported type %q", t)
	}
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05.999999-07:00",
	"2006-01-02T15:04:05.999999",
	"2006-01-02",
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if tm, err := time.Parse(layout, raw); err == nil {
			return tm, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
