// Package value converts raw MPD attribute strings into typed values.
//
// Every parser reports success with a boolean. A false result means the
// attribute is treated as absent and the caller keeps its default.
package value

import (
	"strconv"
	"strings"
	"unicode"
)

// Uint scans a leading unsigned decimal number. Trailing characters are ignored.
func Uint(s string) (uint32, bool) {
	digits, _ := leadingDigits(strings.TrimLeftFunc(s, unicode.IsSpace))
	if digits == "" {
		return 0, false
	}

	v, err := strconv.ParseUint(digits, 10, 32)
	if nil != err {
		return 0, false
	}

	return uint32(v), true
}

// Uint64 is the 64-bit variant of Uint.
func Uint64(s string) (uint64, bool) {
	digits, _ := leadingDigits(strings.TrimLeftFunc(s, unicode.IsSpace))
	if digits == "" {
		return 0, false
	}

	v, err := strconv.ParseUint(digits, 10, 64)
	if nil != err {
		return 0, false
	}

	return v, true
}

// Int scans a leading, optionally signed, decimal number.
func Int(s string) (int64, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	var sign string
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		sign, s = s[:1], s[1:]
	}

	digits, _ := leadingDigits(s)
	if digits == "" {
		return 0, false
	}

	v, err := strconv.ParseInt(sign+digits, 10, 64)
	if nil != err {
		return 0, false
	}

	return v, true
}

func Double(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if nil != err {
		return 0, false
	}

	return v, true
}

// Bool accepts exactly "true" or "false".
func Bool(s string) (bool, bool) {
	switch s {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// StringVector splits on single spaces. Empty tokens are kept.
func StringVector(s string) []string {
	return strings.Split(s, " ")
}

// UintVector splits on single spaces and requires every token to be an unsigned number.
func UintVector(s string) ([]uint32, bool) {
	tokens := strings.Split(s, " ")
	out := make([]uint32, 0, len(tokens))
	for _, token := range tokens {
		v, ok := Uint(token)
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}

	return out, true
}

// SAPType is a stream access point type, 0 meaning unknown.
type SAPType uint8

func ParseSAPType(s string) (SAPType, bool) {
	v, ok := Uint(s)
	if !ok || v > 6 {
		return 0, false
	}

	return SAPType(v), true
}

// Range is a byte range. A missing bound on either side is stored as 0.
type Range struct {
	First uint64
	Last  uint64
}

// ParseRange parses "A-B". Either side may be empty, the separator may not.
func ParseRange(s string) (Range, bool) {
	head, tail, found := strings.Cut(s, "-")
	if !found {
		return Range{}, false
	}

	var r Range
	if head != "" {
		v, ok := Uint64(head)
		if !ok {
			return Range{}, false
		}
		r.First = v
	}

	if tail != "" {
		v, ok := Uint64(tail)
		if !ok {
			return Range{}, false
		}
		r.Last = v
	}

	return r, true
}

// Ratio is an aspect ratio such as "16:9".
type Ratio struct {
	Num uint32
	Den uint32
}

func ParseRatio(s string) (Ratio, bool) {
	num, den, ok := fraction(s, ":")
	return Ratio{Num: num, Den: den}, ok
}

// FrameRate is "N/D" or a bare "N".
type FrameRate struct {
	Num uint32
	Den uint32
}

func ParseFrameRate(s string) (FrameRate, bool) {
	num, den, ok := fraction(s, "/")
	return FrameRate{Num: num, Den: den}, ok
}

func (f FrameRate) Float() float64 {
	if f.Den == 0 {
		return 0
	}

	return float64(f.Num) / float64(f.Den)
}

func fraction(s, sep string) (num, den uint32, ok bool) {
	head, tail, found := strings.Cut(s, sep)
	if !found {
		num, ok = Uint(s)
		return num, 1, ok
	}

	num, den = 0, 1
	if head != "" {
		if num, ok = Uint(head); !ok {
			return 0, 1, false
		}
	}

	if tail != "" {
		if den, ok = Uint(tail); !ok {
			return 0, 1, false
		}
	}

	return num, den, true
}

// CondUint is the conditional unsigned integer used by segmentAlignment and
// subsegmentAlignment: a flag plus an optional value.
type CondUint struct {
	Flag  bool
	Value uint32
}

func ParseCondUint(s string) (CondUint, bool) {
	switch s {
	case "false":
		return CondUint{Flag: false, Value: 0}, true
	case "true":
		return CondUint{Flag: true, Value: 0}, true
	}

	v, ok := Uint(s)
	if !ok {
		return CondUint{}, false
	}

	return CondUint{Flag: true, Value: v}, true
}

func leadingDigits(s string) (digits, rest string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}

	return s[:i], s[i:]
}
