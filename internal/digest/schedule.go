package digest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Parser accepts 5-field and 6-field (with seconds) specs and descriptors.
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

var reHHMM = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)

// ParseSchedule turns a schedule string into a cron spec.
//
// Supported forms:
//   - Cron: "0 9 * * *", "0 0 9 * * 1-5", "@daily", "@every 6h"
//   - Time of day HH:MM: "09:30" (every day at 09:30)
//   - Interval duration: "12h", "90m"
//
// An optional "cron:" prefix forces cron parsing.
func ParseSchedule(raw string) (string, cron.Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil, fmt.Errorf("schedule required")
	}
	spec := s
	switch {
	case strings.HasPrefix(strings.ToLower(s), "cron:"):
		spec = strings.TrimSpace(s[len("cron:"):])
	case strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@"):
	case reHHMM.MatchString(s):
		m := reHHMM.FindStringSubmatch(s)
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if hh > 23 || mm > 59 {
			return "", nil, fmt.Errorf("invalid time of day %q", raw)
		}
		spec = fmt.Sprintf("0 %d %d * * *", mm, hh)
	default:
		d, err := time.ParseDuration(s)
		if err != nil {
			return "", nil, fmt.Errorf("invalid schedule %q (use cron like '0 9 * * *', HH:MM like '09:30', or duration like '12h')", raw)
		}
		if d < time.Minute {
			return "", nil, fmt.Errorf("interval must be at least 1m")
		}
		spec = "@every " + d.String()
	}
	sched, err := Parser.Parse(spec)
	if err != nil {
		return "", nil, fmt.Errorf("invalid schedule %q: %w", raw, err)
	}
	return spec, sched, nil
}
