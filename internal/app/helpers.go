package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mx-space/mdx-core/internal/config"
)

// applyRuntimeSettings switches the process time zone, which the daily log
// files and the visit retention cutoff follow.
func applyRuntimeSettings(cfg *config.AppConfig) error {
	tz := strings.TrimSpace(cfg.Timezone)
	if tz == "" {
		return nil
	}
	loc, err := parseTimezoneLocation(tz)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", tz, err)
	}
	time.Local = loc
	return os.Setenv("TZ", tz)
}

// parseTimezoneLocation accepts an IANA name or a fixed offset like "+08:00".
func parseTimezoneLocation(tz string) (*time.Location, error) {
	if loc, err := time.LoadLocation(tz); err == nil {
		return loc, nil
	}
	if strings.HasPrefix(tz, "+") || strings.HasPrefix(tz, "-") {
		if t, err := time.Parse("-07:00", tz); err == nil {
			_, offset := t.Zone()
			return time.FixedZone(tz, offset), nil
		}
	}
	return nil, fmt.Errorf("want an IANA zone such as Europe/Berlin or an offset such as +08:00")
}
