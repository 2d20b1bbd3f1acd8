package unit

import (
	"strconv"
)

const (
	// https://en.wikipedia.org/wiki/Kilobyte
	Byte     = 1
	Kilobyte = 1000 * Byte
	Megabyte = 1000 * Kilobyte
	Gigabyte = 1000 * Megabyte
	Kibibyte = 1024 * Byte
	Mebibyte = 1024 * Kibibyte
	Gibibyte = 1024 * Mebibyte
)

// FormatBytes renders n with the largest binary unit that keeps it above 1.
func FormatBytes(n int64) string {
	switch {
	case n >= Gibibyte:
		return strconv.FormatFloat(float64(n)/Gibibyte, 'f', 1, 64) + " GiB"
	case n >= Mebibyte:
		return strconv.FormatFloat(float64(n)/Mebibyte, 'f', 1, 64) + " MiB"
	case n >= Kibibyte:
		return strconv.FormatFloat(float64(n)/Kibibyte, 'f', 1, 64) + " KiB"
	default:
		return strconv.FormatInt(n, 10) + " B"
	}
}

// FormatBitrate renders a bandwidth in bits per second.
func FormatBitrate(bps uint32) string {
	switch {
	case bps >= Megabyte:
		return strconv.FormatFloat(float64(bps)/Megabyte, 'f', 2, 64) + " Mbps"
	case bps >= Kilobyte:
		return strconv.FormatFloat(float64(bps)/Kilobyte, 'f', 0, 64) + " kbps"
	default:
		return strconv.FormatUint(uint64(bps), 10) + " bps"
	}
}
