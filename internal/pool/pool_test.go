package pool

import "testing"

type order struct {
	Price int64
	Qty   uint32
}

func TestAllocateAndGet(t *testing.T) {
	p := New[order](4)

	h, ok := p.Allocate()
	if !ok {
		t.Fatal("expected allocation to succeed")
	}
	o := p.Get(h)
	if o == nil {
		t.Fatal("expected live slot")
	}
	o.Price = 100
	if p.Get(h).Price != 100 {
		t.Fatal("mutation through handle did not persist")
	}
}

func TestExhaustion(t *testing.T) {
	p := New[order](2)
	if _, ok := p.Allocate(); !ok {
		t.Fatal("first allocation should succeed")
	}
	if _, ok := p.Allocate(); !ok {
		t.Fatal("second allocation should succeed")
	}
	if _, ok := p.Allocate(); ok {
		t.Fatal("third allocation should fail: pool is exhausted")
	}
}

func TestDoubleFreeIsRejected(t *testing.T) {
	p := New[order](2)
	h, _ := p.Allocate()
	if err := p.Release(h); err != nil {
		t.Fatalf("first release should succeed: %v", err)
	}
	if err := p.Release(h); err == nil {
		t.Fatal("second release of the same handle must fail")
	}
}

func TestStaleHandleAfterReuse(t *testing.T) {
	p := New[order](1)
	h1, _ := p.Allocate()
	if err := p.Release(h1); err != nil {
		t.Fatal(err)
	}
	h2, ok := p.Allocate()
	if !ok {
		t.Fatal("expected reallocation of the freed slot")
	}
	if h1.Index() != h2.Index() {
		t.Fatalf("expected slot reuse, got different index")
	}
	if p.Get(h1) != nil {
		t.Fatal("stale handle h1 must not resolve after the slot was reallocated")
	}
	if p.Get(h2) == nil {
		t.Fatal("fresh handle h2 must resolve")
	}
}

func TestLiveAndFreeCountsSumToCapacity(t *testing.T) {
	p := New[order](8)
	var handles []Handle
	for i := 0; i < 5; i++ {
		h, ok := p.Allocate()
		if !ok {
			t.Fatal("unexpected exhaustion")
		}
		handles = append(handles, h)
	}
	if p.Live()+p.Free() != p.Cap() {
		t.Fatalf("live+free=%d, want cap=%d", p.Live()+p.Free(), p.Cap())
	}
	for _, h := range handles {
		if err := p.Release(h); err != nil {
			t.Fatal(err)
		}
	}
	if p.Live() != 0 {
		t.Fatalf("expected live=0, got %d", p.Live())
	}
	if p.Live()+p.Free() != p.Cap() {
		t.Fatalf("live+free=%d, want cap=%d", p.Live()+p.Free(), p.Cap())
	}
}

func TestGetByIndexAndReleaseByIndex(t *testing.T) {
	p := New[order](2)
	h, _ := p.Allocate()
	if p.GetByIndex(h.Index()) == nil {
		t.Fatal("expected live slot via raw index")
	}
	if err := p.ReleaseByIndex(h.Index()); err != nil {
		t.Fatal(err)
	}
	if p.GetByIndex(h.Index()) != nil {
		t.Fatal("expected slot to be free after ReleaseByIndex")
	}
	if err := p.ReleaseByIndex(h.Index()); err == nil {
		t.Fatal("double free by index must be rejected")
	}
}
