package session

import "time"

// millisToTime converts an epoch-milliseconds event timestamp.
func millisToTime(ms float64) time.Time {
	return time.UnixMilli(int64(ms))
}
