package sqlite

import "time"

// unixNanoToUTC converts the integer timestamps stored in created_utc
// columns (SQLite has no native time type) back to a UTC time.Time.
func unixNanoToUTC(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}
