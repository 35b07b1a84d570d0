package datum

import (
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collation names the ordering used for text comparison. The empty
// string, "C" and "POSIX" select plain byte order; anything else is
// treated as a BCP 47 locale tag.
type Collation string

const (
	CollationDefault Collation = ""
	CollationC       Collation = "C"
	CollationPOSIX   Collation = "POSIX"
)

func (c Collation) byteOrder() bool {
	return c == CollationDefault || c == CollationC || c == CollationPOSIX
}

// Collators keep iteration state, so each cached one is guarded.
type lockedCollator struct {
	mu sync.Mutex
	c  *collate.Collator
}

var collators sync.Map // Collation -> *lockedCollator

func compareCollated(a, b string, coll Collation) int {
	v, ok := collators.Load(coll)
	if !ok {
		v, _ = collators.LoadOrStore(coll, &lockedCollator{
			c: collate.New(language.Make(string(coll))),
		})
	}
	lc := v.(*lockedCollator)
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.c.CompareString(a, b)
}

// Compare orders two values of the same type family, returning -1, 0 or 1.
// Text ordering follows coll; numeric values compare across integer and
// float widths; dates compare with timestamps at midnight.
func Compare(a, b Value, coll Collation) (int, error) {
	switch av := a.(type) {
	case Int2, Int4, Int8:
		if isFloat(b) {
			return compareFloat64(toFloat64(a), toFloat64(b)), nil
		}
		if bi, ok := toInt64(b); ok {
			ai, _ := toInt64(a)
			return compareInt64(ai, bi), nil
		}
	case Float8:
		if isNumeric(b) {
			return compareFloat64(av.V, toFloat64(b)), nil
		}
	case Date, Timestamp, TimestampTZ:
		if bt, ok := toTime(b); ok {
			at, _ := toTime(a)
			return at.Compare(bt), nil
		}
	case Text:
		if bv, ok := b.(Text); ok {
			if coll.byteOrder() {
				return compareBytes(av.S, bv.S), nil
			}
			return compareCollated(av.S, bv.S, coll), nil
		}
	case Bool:
		if bv, ok := b.(Bool); ok {
			return compareBool(av.V, bv.V), nil
		}
	case Interval:
		if bv, ok := b.(Interval); ok {
			return compareInt64(av.linear(), bv.linear()), nil
		}
	}
	return 0, fmt.Errorf("cannot compare %s with %s", a.Type().SQLName(), b.Type().SQLName())
}

func isNumeric(v Value) bool {
	switch v.(type) {
	case Int2, Int4, Int8, Float8:
		return true
	}
	return false
}

func isFloat(v Value) bool {
	_, ok := v.(Float8)
	return ok
}

func toInt64(v Value) (int64, bool) {
	switch t := v.(type) {
	case Int2:
		return int64(t.V), true
	case Int4:
		return int64(t.V), true
	case Int8:
		return t.V, true
	}
	return 0, false
}

func toFloat64(v Value) float64 {
	switch t := v.(type) {
	case Int2:
		return float64(t.V)
	case Int4:
		return float64(t.V)
	case Int8:
		return float64(t.V)
	case Float8:
		return t.V
	}
	return 0
}

func toTime(v Value) (time.Time, bool) {
	switch t := v.(type) {
	case Date:
		return t.Time(), true
	case Timestamp:
		return t.T.UTC(), true
	case TimestampTZ:
		return t.T.UTC(), true
	}
	return time.Time{}, false
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// NaN sorts above every other value, the way float8 ordering does.
func compareFloat64(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareBytes(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareBool(a, b bool) int {
	switch {
	case !a && b:
		return -1
	case a && !b:
		return 1
	}
	return 0
}
