// Package codec decodes raw 16-bit holding-register words.
//
// All functions are pure and never fail. A word equal to Sentinel means
// "value unavailable" only for callers that route it through Scaled,
// Multiplied or RawOrAbsent; Bitmask and BytePair treat it as data.
package codec

import "strings"

// Sentinel marks an unavailable measurement word.
const Sentinel uint16 = 0xFFFF

const (
	asciiLow  = 0x20
	asciiHigh = 0x7A
)

// PackedASCII decodes two characters per word, high byte first.
// Bytes outside [0x20, 0x7A] are dropped, not replaced. The result is
// trimmed of NUL and whitespace and truncated to maxChars.
func PackedASCII(words []uint16, maxChars int) string {
	buf := make([]byte, 0, len(words)*2)
	for _, w := range words {
		for _, b := range [2]byte{byte(w >> 8), byte(w)} {
			if b >= asciiLow && b <= asciiHigh {
				buf = append(buf, b)
			}
		}
	}

	s := strings.TrimSpace(strings.Trim(string(buf), "\x00"))
	if maxChars >= 0 && len(s) > maxChars {
		s = s[:maxChars]
	}
	return s
}

// Scaled returns word/scale, or nil for the sentinel.
func Scaled(word uint16, scale float64) *float64 {
	if word == Sentinel {
		return nil
	}
	v := float64(word) / scale
	return &v
}

// Multiplied returns word*multiplier, or nil for the sentinel.
func Multiplied(word uint16, multiplier int) *int {
	if word == Sentinel {
		return nil
	}
	v := int(word) * multiplier
	return &v
}

// RawOrAbsent returns the word unchanged, or nil for the sentinel.
func RawOrAbsent(word uint16) *int {
	return Multiplied(word, 1)
}

// BytePair splits a word into its high and low bytes.
func BytePair(word uint16) (hi, lo uint8) {
	return uint8(word >> 8), uint8(word)
}

// Bitmask reports whether any bit of mask is set in word.
func Bitmask(word, mask uint16) bool {
	return word&mask != 0
}

// Runtime combines minutes and seconds into fractional minutes.
// Both parts must be present.
func Runtime(minutes, seconds *int) *float64 {
	if minutes == nil || seconds == nil {
		return nil
	}
	v := float64(*minutes) + float64(*seconds)/60.0
	return &v
}

// BatteryVoltage is the sum of the positive and negative strings in 0.1 V.
// Either half being the sentinel makes the total absent.
func BatteryVoltage(pos, neg uint16) *float64 {
	if pos == Sentinel || neg == Sentinel {
		return nil
	}
	v := (float64(pos) + float64(neg)) / 10.0
	return &v
}

// Split32 splits v into two words, most significant first.
func Split32(v uint32) (msb, lsb uint16) {
	return uint16(v >> 16), uint16(v)
}

// Join32 is the inverse of Split32.
func Join32(msb, lsb uint16) uint32 {
	return uint32(msb)<<16 | uint32(lsb)
}
