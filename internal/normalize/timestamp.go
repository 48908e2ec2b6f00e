// Package normalize converts the timestamp forms used by the ground-truth
// and tool input formats (ISO-8601 with offset, bare Unix seconds) into the
// single canonical form the rest of the system keys on: Unix seconds with
// exactly six fractional digits.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// isoLayout matches the ISO-8601 form used across the ground-truth and
// tool-B wire formats: YYYY-MM-DDTHH:MM:SS.ffffff±HHMM.
const isoLayout = "2006-01-02T15:04:05.999999-0700"

var sixDecimals = regexp.MustCompile(`^\d+\.\d+$`)

// ParseTimestamp accepts either an ISO-8601 string with offset or a bare
// Unix-seconds string (optionally fractional) and returns Unix seconds as
// a float64. It does not perform any timezone conversion beyond parsing
// the offset the input already carries.
func ParseTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("normalize: empty timestamp")
	}
	if isUnixLike(s) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("normalize: unparseable unix timestamp %q: %w", s, err)
		}
		return v, nil
	}
	t, err := time.Parse(isoLayout, s)
	if err != nil {
		// Some sources omit the offset colon-free form or the fraction
		// entirely; fall back to RFC3339Nano which tolerates both.
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, fmt.Errorf("normalize: unrecognized timestamp %q: %w", s, err)
		}
	}
	ns := t.UnixNano()
	return float64(ns) / 1e9, nil
}

func isUnixLike(s string) bool {
	if sixDecimals.MatchString(s) {
		return true
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// SixDecimal renders ts as Unix seconds with exactly six fractional
// digits, right-padding with zeros when shorter and truncating (never
// rounding) when longer. This is the "truncated_timestamp" the AID hash
// is built from — it must produce a bit-identical string regardless of
// how many decimal digits the source format carried.
func SixDecimal(ts float64) string {
	s := strconv.FormatFloat(ts, 'f', -1, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	if len(frac) > 6 {
		frac = frac[:6]
	} else {
		frac += strings.Repeat("0", 6-len(frac))
	}
	return intPart + "." + frac
}

// HumanReadable renders ts as a human-readable UTC timestamp for
// diagnostics, such as the anchor shown by the status API. Never used
// for anything load-bearing.
func HumanReadable(ts float64) string {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC().Format("2006-01-02 15:04:05")
}
