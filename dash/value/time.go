package value

import (
	"strconv"
	"strings"
	"time"
)

// ParseDateTime parses "YYYY-MM-DDThh:mm:ss" as UTC. Fractional seconds and
// zone designators after the seconds are ignored.
func ParseDateTime(s string) (time.Time, bool) {
	const separators = "--T::"

	var parts [6]int
	rest := s
	for i := range parts {
		digits, r := leadingDigits(rest)
		if digits == "" {
			return time.Time{}, false
		}

		v, err := strconv.Atoi(digits)
		if nil != err {
			return time.Time{}, false
		}
		parts[i] = v

		if i < len(separators) {
			j := strings.IndexByte(r, separators[i])
			if j < 0 {
				return time.Time{}, false
			}
			rest = r[j+1:]
		}
	}

	year, month, day, hour, minute, second := parts[0], parts[1], parts[2], parts[3], parts[4], parts[5]
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 60 {
		return time.Time{}, false
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), true
}

// ParseDuration parses an xs:duration "[-]PnYnMnDTnHnMnS" into signed milliseconds.
// A year counts as 365 days and a month as 30 days. Fractional seconds are
// truncated to millisecond precision.
func ParseDuration(s string) (int64, bool) {
	sign := int64(1)
	if i := strings.IndexByte(s, '-'); i >= 0 {
		if i != 0 {
			return 0, false
		}
		sign = -1
		s = s[1:]
	}

	if !strings.HasPrefix(s, "P") {
		return 0, false
	}
	s = s[1:]

	var (
		years, months, days     int64
		hours, minutes, seconds int64
		millis                  int64
	)

	datePart, timePart, _ := strings.Cut(s, "T")
	for datePart != "" {
		n, unit, rest, ok := component(datePart)
		if !ok {
			return 0, false
		}

		switch unit {
		case 'Y':
			years = n
		case 'M':
			months = n
		case 'D':
			days = n
		default:
			return 0, false
		}
		datePart = rest
	}

	haveFraction := false
	for timePart != "" {
		digits, _ := leadingDigits(timePart)
		n, unit, rest, ok := component(timePart)
		if !ok {
			return 0, false
		}

		switch unit {
		case 'H':
			hours = n
		case 'M':
			minutes = n
		case 'S':
			if haveFraction {
				millis = fractionToMillis(digits)
			} else {
				seconds = n
			}
		case '.', ',':
			seconds = n
			haveFraction = true
		default:
			return 0, false
		}
		timePart = rest
	}

	total := ((((years*365+months*30+days)*24+hours)*60+minutes)*60+seconds)*1000 + millis

	return sign * total, true
}

// component reads "<digits><unit>" from the start of s.
func component(s string) (n int64, unit byte, rest string, ok bool) {
	digits, r := leadingDigits(s)
	if digits == "" || r == "" {
		return 0, 0, "", false
	}

	n, err := strconv.ParseInt(digits, 10, 32)
	if nil != err {
		return 0, 0, "", false
	}

	return n, r[0], r[1:], true
}

// fractionToMillis converts the digits after a decimal point into milliseconds.
func fractionToMillis(digits string) int64 {
	if len(digits) > 3 {
		digits = digits[:3]
	}
	digits += strings.Repeat("0", 3-len(digits))
	v, _ := strconv.ParseInt(digits, 10, 64)

	return v
}
