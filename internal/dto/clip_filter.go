// ClipFilters describe user-provided filters to narrow the clip list.
package dto

import "time"

type ClipFilters struct {
	Identifier string
	Status     string
	After      time.Time
	Before     time.Time
	Limit      int
	Offset     int
}
