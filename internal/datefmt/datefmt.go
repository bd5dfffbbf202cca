// Package datefmt formats dates for templates.
//
// Format never fails: values that cannot be read as a date produce an empty
// string, so a bad front matter date blanks the field instead of aborting the
// page render.
package datefmt

import (
	"time"

	"github.com/spf13/cast"
)

// Layout is the dd-mm-yyyy layout used by the formatDate filter.
const Layout = "02-01-2006"

// Format renders v in UTC as dd-mm-yyyy.
// It accepts time.Time, *time.Time and anything cast can coerce to a time
// (RFC3339 or 2006-01-02 strings, unix seconds). Zero and unreadable values
// yield "".
func Format(v any) string {
	t, ok := toTime(v)
	if !ok {
		return ""
	}
	return t.UTC().Format(Layout)
}

func toTime(v any) (time.Time, bool) {
	switch d := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return d, !d.IsZero()
	case *time.Time:
		if d == nil {
			return time.Time{}, false
		}
		return *d, !d.IsZero()
	}

	t, err := cast.ToTimeInDefaultLocationE(v, time.UTC)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}
