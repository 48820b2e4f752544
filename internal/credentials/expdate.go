package credentials

import (
	"strconv"
	"time"
)

// csvExpDateLayout matches the format alias_repository.rs writes exp_date
// columns in ("%Y-%m-%d %H:%M:%S").
const csvExpDateLayout = "2006-01-02 15:04:05"

// parseCSVExpDate accepts either a bare unix-seconds integer or the
// "YYYY-MM-DD HH:MM:SS" layout the batch CSV writer uses.
func parseCSVExpDate(s string) (int64, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if t, err := time.ParseInLocation(csvExpDateLayout, s, time.UTC); err == nil {
		return t.Unix(), true
	}
	return 0, false
}
