package pad

import (
	"testing"
	"unsafe"

	"golang.org/x/sys/cpu"
)

func TestPaddingSurroundsValue(t *testing.T) {
	line := unsafe.Sizeof(cpu.CacheLinePad{})

	var a AtomicInt64
	if got := unsafe.Offsetof(a.Int64); got < line {
		t.Errorf("AtomicInt64 value offset = %d, want >= %d", got, line)
	}
	if got := unsafe.Sizeof(a) - unsafe.Offsetof(a.Int64); got < line+8 {
		t.Errorf("AtomicInt64 trailing bytes = %d, want >= %d", got, line+8)
	}

	var p Int64Pair
	if got := unsafe.Offsetof(p.First); got < line {
		t.Errorf("Int64Pair first offset = %d, want >= %d", got, line)
	}
	if got := unsafe.Sizeof(p) - unsafe.Offsetof(p.Second); got < line+8 {
		t.Errorf("Int64Pair trailing bytes = %d, want >= %d", got, line+8)
	}
}

func TestAdjacentValuesDoNotShareALine(t *testing.T) {
	line := uintptr(unsafe.Sizeof(cpu.CacheLinePad{}))
	values := make([]AtomicInt64, 2)
	a := uintptr(unsafe.Pointer(&values[0].Int64))
	b := uintptr(unsafe.Pointer(&values[1].Int64))
	if b-a < line {
		t.Fatalf("adjacent values are %d bytes apart, want >= %d", b-a, line)
	}
}
