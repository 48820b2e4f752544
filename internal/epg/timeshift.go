package epg

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimeshift parses a user-configured EPG timeshift (spec §4.7
// "Timeshift parsing accepts either an IANA zone name … or a signed
// H[:MM] form"), returning the shift as a duration. An empty string (or
// "0"/"0:00") is not an error — callers check the zero-value case
// themselves to decide whether any rewriting is needed at all.
//
// Grounded on original_source's `parse_timeshift` (xmltv_api.rs): try an
// IANA zone name first (offset computed for "now", so it's DST-aware),
// then fall back to a signed H[:MM] numeric offset.
func ParseTimeshift(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if loc, err := time.LoadLocation(s); err == nil {
		_, offsetSeconds := time.Now().In(loc).Zone()
		return time.Duration(offsetSeconds) * time.Second, nil
	}
	return parseSignedHM(s)
}

func parseSignedHM(s string) (time.Duration, error) {
	sign := time.Duration(1)
	rest := s
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1
		rest = s[1:]
	case strings.HasPrefix(s, "+"):
		rest = s[1:]
	}

	parts := strings.SplitN(rest, ":", 2)
	var hours, minutes int64
	var err error
	if parts[0] != "" {
		hours, err = strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("epg: invalid timeshift %q: %w", s, err)
		}
	}
	if len(parts) == 2 && parts[1] != "" {
		minutes, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("epg: invalid timeshift %q: %w", s, err)
		}
	}
	total := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	return sign * total, nil
}

// xmltvTimeLayout is the XMLTV attribute time layout: "YYYYMMDDHHMMSS
// ±HHMM" (spec §4.7).
const xmltvTimeLayout = "20060102150405 -0700"

// shiftXMLTVTime rewrites an XMLTV start/stop attribute value by shift,
// preserving the original timezone offset exactly (spec §4.7 "preserving
// the original timezone"). Values that don't parse as XMLTV times are
// returned unchanged, matching original_source's fail-open behavior.
func shiftXMLTVTime(value string, shift time.Duration) string {
	trimmed := strings.TrimSpace(value)
	datePart, zonePart, ok := strings.Cut(trimmed, " ")
	if !ok {
		datePart, zonePart = trimmed, "+0000"
	}
	t, err := time.Parse(xmltvTimeLayout, datePart+" "+zonePart)
	if err != nil {
		return value
	}
	return t.Add(shift).Format(xmltvTimeLayout)
}
