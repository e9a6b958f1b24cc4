// SnapshotFilters describe user-provided filters to narrow the history list.
package dto

import "time"

type SnapshotFilters struct {
	Origin     string
	Class      string
	DateAfter  time.Time
	DateBefore time.Time
	TimeAfter  time.Time
	TimeBefore time.Time
	Limit      int
	Offset     int
}
