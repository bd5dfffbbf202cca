package bibliography

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMissingYear is returned when an entry has no publication year to sort
// by.
var ErrMissingYear = errors.New("bibliography entry has no publication year")

// SortByYear orders entries by publication year, oldest first.
// Entries from the same year keep their input order. Every entry must carry
// a year; otherwise entries is left untouched and the error names the
// offending ids.
func SortByYear(entries []Entry) error {
	var missing []string
	for _, e := range entries {
		if _, ok := e.Year(); !ok {
			missing = append(missing, e.ID)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingYear, strings.Join(missing, ", "))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		yi, _ := entries[i].Year()
		yj, _ := entries[j].Year()
		return yi < yj
	})
	return nil
}

// sortByAuthor is the style's own ordering, used when the caller has not
// pre-sorted.
func sortByAuthor(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ki, kj := entries[i].sortKey(), entries[j].sortKey()
		if ki != kj {
			return ki < kj
		}
		yi, _ := entries[i].Year()
		yj, _ := entries[j].Year()
		return yi < yj
	})
}
