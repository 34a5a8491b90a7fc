// Package conv provides checked integer conversions for the program
// serializer.
//
// These functions bounds-check before narrowing to prevent silent
// overflow. They panic on violation since an out-of-range value here is
// a programming error: the compiler caps program size well inside every
// packed field's range.
package conv

import "math"

const (
	maxInt24 = 1<<23 - 1
	minInt24 = -1 << 23
)

// IntToUint32 safely converts an int to uint32.
// Panics if n < 0 or n > math.MaxUint32.
//
//go:inline
func IntToUint32(n int) uint32 {
	// Compare as uint so 32-bit platforms, where int cannot hold
	// math.MaxUint32, stay correct.
	if n < 0 || uint(n) > math.MaxUint32 {
		panic("integer overflow: int value out of uint32 range")
	}
	return uint32(n)
}

// IntToUint16 safely converts an int to uint16.
// Panics if n < 0 or n > math.MaxUint16.
//
//go:inline
func IntToUint16(n int) uint16 {
	if n < 0 || n > math.MaxUint16 {
		panic("integer overflow: int value out of uint16 range")
	}
	return uint16(n)
}

// PackInt24 narrows a signed operand into its 24-bit two's-complement
// wire form. Panics if v is outside ±(2^23).
//
//go:inline
func PackInt24(v int32) uint32 {
	if v < minInt24 || v > maxInt24 {
		panic("integer overflow: operand out of int24 range")
	}
	return uint32(v) & 0xFFFFFF
}

// UnpackInt24 sign-extends a 24-bit two's-complement wire field back to
// int32. Only the low 24 bits of u are read.
//
//go:inline
func UnpackInt24(u uint32) int32 {
	u &= 0xFFFFFF
	if u&0x800000 != 0 {
		u |= 0xFF000000
	}
	return int32(u)
}
