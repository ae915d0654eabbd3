package ddl

import "strings"

// SelectPrimaryKey returns the first column, in ordinal order, whose name ends
// in "_id". The second result is false when no column qualifies.
func SelectPrimaryKey(cols []Column) (Column, bool) {
	best := -1
	for i, c := range cols {
		if !strings.HasSuffix(strings.ToLower(c.Name), "_id") {
			continue
		}
		if best < 0 || c.Ordinal < cols[best].Ordinal {
			best = i
		}
	}
	if best < 0 {
		return Column{}, false
	}
	return cols[best], true
}
