package datum

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Interval is a calendar interval with independent month, day and
// sub-day components, matching PostgreSQL's storage model. Month
// arithmetic clamps to the end of the target month.
type Interval struct {
	Months int32
	Days   int32
	Micros int64
}

func (v Interval) Type() Type { return TypeInterval }

func (v Interval) String() string {
	var parts []string
	if v.Months != 0 {
		y, m := v.Months/12, v.Months%12
		if y != 0 {
			parts = append(parts, plural(int64(y), "year"))
		}
		if m != 0 {
			parts = append(parts, plural(int64(m), "mon"))
		}
	}
	if v.Days != 0 {
		parts = append(parts, plural(int64(v.Days), "day"))
	}
	if v.Micros != 0 {
		sec := v.Micros / 1e6
		h, rem := sec/3600, sec%3600
		parts = append(parts, fmt.Sprintf("%02d:%02d:%02d", h, rem/60, rem%60))
	}
	if len(parts) == 0 {
		return "00:00:00"
	}
	return strings.Join(parts, " ")
}

func plural(n int64, unit string) string {
	if n == 1 || n == -1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// linear approximates the interval as microseconds for ordering, using
// the PostgreSQL convention of 30-day months and 24-hour days.
func (v Interval) linear() int64 {
	return (int64(v.Months)*30+int64(v.Days))*24*3600*1e6 + v.Micros
}

// ParseInterval accepts the word form of interval literals, e.g.
// "1 month", "2 years 3 days", "90 minutes", "1 week", plus an optional
// trailing HH:MM:SS clock part. A bare number is taken as days.
func ParseInterval(s string) (Interval, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(fields) == 0 {
		return Interval{}, fmt.Errorf("invalid input %q for type interval", s)
	}
	var iv Interval
	i := 0
	for i < len(fields) {
		f := fields[i]
		if strings.Contains(f, ":") {
			micros, err := parseClock(f)
			if err != nil {
				return Interval{}, fmt.Errorf("invalid input %q for type interval", s)
			}
			iv.Micros += micros
			i++
			continue
		}
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return Interval{}, fmt.Errorf("invalid input %q for type interval", s)
		}
		if i+1 >= len(fields) {
			// Bare quantity with no unit counts as days.
			iv.Days += int32(n)
			i++
			continue
		}
		unit := strings.TrimSuffix(fields[i+1], "s")
		switch unit {
		case "year", "yr", "y":
			iv.Months += int32(n * 12)
		case "month", "mon":
			iv.Months += int32(n)
		case "week", "w":
			iv.Days += int32(n * 7)
		case "day", "d":
			iv.Days += int32(n)
		case "hour", "hr", "h":
			iv.Micros += n * 3600 * 1e6
		case "minute", "min", "m":
			iv.Micros += n * 60 * 1e6
		case "second", "sec":
			iv.Micros += n * 1e6
		default:
			return Interval{}, fmt.Errorf("invalid input %q for type interval", s)
		}
		i += 2
	}
	return iv, nil
}

func parseClock(f string) (int64, error) {
	parts := strings.Split(f, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("bad clock %q", f)
	}
	var total int64
	mult := []int64{3600, 60, 1}
	if len(parts) == 2 {
		mult = mult[:2]
	}
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return 0, err
		}
		total += n * mult[i]
	}
	return total * 1e6, nil
}

// addMonthsClamped advances a civil date by whole months, clamping the
// day to the end of the target month the way timestamp_pl_interval does
// (Jan 31 + 1 mon = Feb 28).
func addMonthsClamped(y int, m time.Month, d int, months int) (int, time.Month, int) {
	total := y*12 + int(m) - 1 + months
	ny, nm := total/12, time.Month(total%12+1)
	if total < 0 && total%12 != 0 {
		ny--
		nm = time.Month(total%12 + 13)
	}
	if last := lastDayOfMonth(ny, nm); d > last {
		d = last
	}
	return ny, nm, d
}

func lastDayOfMonth(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func addTimeInterval(t time.Time, iv Interval) time.Time {
	t = t.UTC()
	if iv.Months != 0 {
		y, m, d := t.Date()
		ny, nm, nd := addMonthsClamped(y, m, d, int(iv.Months))
		t = time.Date(ny, nm, nd, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	}
	if iv.Days != 0 {
		t = t.AddDate(0, 0, int(iv.Days))
	}
	if iv.Micros != 0 {
		t = t.Add(time.Duration(iv.Micros) * time.Microsecond)
	}
	return t
}
