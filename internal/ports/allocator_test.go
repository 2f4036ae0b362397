package ports

import "testing"

func TestAllocateIsIdempotent(t *testing.T) {
	a := NewAllocator(9000, 4)
	first := a.Allocate("streamer-a")
	second := a.Allocate("streamer-a")
	if first != second {
		t.Fatalf("expected idempotent allocation, got %d then %d", first, second)
	}
}

func TestAllocateReturnsDisjointRanges(t *testing.T) {
	a := NewAllocator(9000, 4)
	p1 := a.Allocate("streamer-a")
	p2 := a.Allocate("streamer-b")
	if p1 == p2 {
		t.Fatalf("expected disjoint base ports, both got %d", p1)
	}
	if p2 < p1+4 && p1 < p2+4 {
		t.Fatalf("ranges [%d,%d) and [%d,%d) overlap", p1, p1+4, p2, p2+4)
	}
}

func TestReleaseFreesSlotForReuse(t *testing.T) {
	a := NewAllocator(9000, 4)
	p1 := a.Allocate("streamer-a")
	a.Allocate("streamer-b")
	a.Release("streamer-a")

	p3 := a.Allocate("streamer-c")
	if p3 != p1 {
		t.Fatalf("expected released slot %d to be reused, got %d", p1, p3)
	}
}

func TestGetReturnsNoneWhenUnassigned(t *testing.T) {
	a := NewAllocator(9000, 4)
	if _, ok := a.Get("unknown"); ok {
		t.Fatalf("expected no assignment for unknown streamer")
	}
}

func TestAllocateFillsLowestFreeSlot(t *testing.T) {
	a := NewAllocator(9000, 4)
	a.Allocate("a")
	a.Allocate("b")
	a.Release("a")
	p := a.Allocate("c")
	if p != 9000 {
		t.Fatalf("expected lowest free slot (9000), got %d", p)
	}
}
