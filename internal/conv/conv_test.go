package conv

import (
	"math"
	"testing"
)

func TestIntToUint32(t *testing.T) {
	if got := IntToUint32(0); got != 0 {
		t.Errorf("IntToUint32(0) = %d", got)
	}
	if got := IntToUint32(math.MaxUint32); got != math.MaxUint32 {
		t.Errorf("IntToUint32(max) = %d", got)
	}
	assertPanics(t, func() { IntToUint32(-1) })
}

func TestIntToUint16(t *testing.T) {
	if got := IntToUint16(math.MaxUint16); got != math.MaxUint16 {
		t.Errorf("IntToUint16(max) = %d", got)
	}
	assertPanics(t, func() { IntToUint16(math.MaxUint16 + 1) })
	assertPanics(t, func() { IntToUint16(-1) })
}

func TestInt24RoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, 100, -100, 1<<23 - 1, -1 << 23}
	for _, v := range values {
		if got := UnpackInt24(PackInt24(v)); got != v {
			t.Errorf("round trip of %d = %d", v, got)
		}
	}
	assertPanics(t, func() { PackInt24(1 << 23) })
	assertPanics(t, func() { PackInt24(-1<<23 - 1) })
}

func TestUnpackIgnoresHighBits(t *testing.T) {
	if got := UnpackInt24(0xAB_FFFFFF); got != -1 {
		t.Errorf("UnpackInt24 with high bits = %d, want -1", got)
	}
}

func assertPanics(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	fn()
}
