package edm

import (
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// FormatDuration renders d as an ISO 8601 duration ("PT4H", "P1DT2H30M", "-PT0.5S").
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}

	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	b.WriteByte('P')

	days := d / day
	d -= days * day
	if days > 0 {
		b.WriteString(strconv.FormatInt(int64(days), 10))
		b.WriteByte('D')
	}
	if d == 0 {
		return b.String()
	}

	b.WriteByte('T')
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	if hours > 0 {
		b.WriteString(strconv.FormatInt(int64(hours), 10))
		b.WriteByte('H')
	}
	if minutes > 0 {
		b.WriteString(strconv.FormatInt(int64(minutes), 10))
		b.WriteByte('M')
	}
	if d > 0 {
		if d%time.Second == 0 {
			b.WriteString(strconv.FormatInt(int64(d/time.Second), 10))
		} else {
			b.WriteString(strconv.FormatFloat(d.Seconds(), 'f', -1, 64))
		}
		b.WriteByte('S')
	}
	return b.String()
}

func formatDuration(d time.Duration, prefixed bool) string {
	if prefixed {
		return "time'" + FormatDuration(d) + "'"
	}
	return "duration'" + FormatDuration(d) + "'"
}

func formatDateTimeOffset(t time.Time, prefixed bool) string {
	s := t.Format(time.RFC3339Nano)
	if prefixed {
		return "datetimeoffset'" + s + "'"
	}
	return s
}
