// Package metrics assembles per-sample correction metrics.
package metrics

import "strconv"

// NAString is how an unavailable value is rendered in reports.
const NAString = "NA"

// Value is a percentage that may be unavailable. The zero Value is NA, so a
// value that was never computed can not be mistaken for 0%.
type Value struct {
	v  float64
	ok bool
}

// NA is the unavailable value.
var NA = Value{}

// Of returns an available value.
func Of(v float64) Value {
	return Value{v: v, ok: true}
}

// Get returns the value and whether it is available.
func (x Value) Get() (float64, bool) {
	return x.v, x.ok
}

// Valid reports whether the value is available.
func (x Value) Valid() bool {
	return x.ok
}

// Sub returns x - y, or NA if either side is NA.
func (x Value) Sub(y Value) Value {
	if !x.ok || !y.ok {
		return NA
	}
	return Of(x.v - y.v)
}

// String formats the value for CSV output.
func (x Value) String() string {
	if !x.ok {
		return NAString
	}
	return strconv.FormatFloat(x.v, 'f', -1, 64)
}

// Float returns a pointer suitable for a nullable database column.
func (x Value) Float() *float64 {
	if !x.ok {
		return nil
	}
	v := x.v
	return &v
}

// ParseValue parses a report cell back into a Value.
func ParseValue(s string) (Value, error) {
	if s == NAString || s == "" {
		return NA, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return NA, err
	}
	return Of(f), nil
}
