package appointment

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/Dragos0000/patient-appointment-api/pkg/errors"
)

// Durations use a compact hours/minutes grammar: "1h", "30m", "1h 30m".
var durationRe = regexp.MustCompile(`^(?:(\d+)h)?(?:\s*(\d+)m)?$`)

// ParseDuration validates a duration string and returns the parsed value
// alongside its trimmed form, which is what gets stored.
func ParseDuration(raw string) (time.Duration, string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, "", pkgerrors.Validation("duration", "Duration is required")
	}
	m := durationRe.FindStringSubmatch(trimmed)
	if m == nil {
		return 0, "", pkgerrors.Validation("duration", `Duration must be in format like "1h", "30m", or "1h 30m"`)
	}
	var hours, minutes int
	var err error
	if m[1] != "" {
		if hours, err = strconv.Atoi(m[1]); err != nil {
			return 0, "", pkgerrors.Validation("duration", `Duration must be in format like "1h", "30m", or "1h 30m"`)
		}
	}
	if m[2] != "" {
		if minutes, err = strconv.Atoi(m[2]); err != nil {
			return 0, "", pkgerrors.Validation("duration", `Duration must be in format like "1h", "30m", or "1h 30m"`)
		}
	}
	if hours == 0 && minutes == 0 {
		return 0, "", pkgerrors.Validation("duration", "Duration must specify at least hours or minutes")
	}
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, trimmed, nil
}
