package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// parseClock converts "HH:mm" (or "HH:mm:ss", seconds ignored) to minutes
// since midnight.
func parseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock value %q out of range", s)
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("invalid clock value %q", s)
		}
	}
	return h*60 + m, nil
}

func clockString(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// span is a resolved clock interval in minutes since midnight, half-open
// [start, end). end < start means the span wraps past midnight.
type span struct {
	start, end int
}

func (s span) contains(m int) bool {
	if s.start == s.end {
		return false
	}
	if s.end < s.start {
		return m >= s.start || m < s.end
	}
	return m >= s.start && m < s.end
}

func anyContains(spans []span, m int) bool {
	for _, s := range spans {
		if s.contains(m) {
			return true
		}
	}
	return false
}
