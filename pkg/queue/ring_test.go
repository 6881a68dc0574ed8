package queue

import (
	"fmt"
	"sync"
	"testing"

	plumber "github.com/MostlyMax/plumber-queue"
)

func TestRingFIFO(t *testing.T) {
	r := New(10)
	for i := 0; i < 5; i++ {
		if _, evicted := r.Push(plumber.Message{Offset: uint64(i), Text: fmt.Sprintf("msg-%d", i)}); evicted {
			t.Fatalf("unexpected eviction at %d", i)
		}
	}
	for i := 0; i < 5; i++ {
		msg, ok := r.Pop()
		if !ok {
			t.Fatalf("expected message %d, ring empty", i)
		}
		if msg.Offset != uint64(i) {
			t.Errorf("expected offset %d, got %d", i, msg.Offset)
		}
	}
	if _, ok := r.Pop(); ok {
		t.Error("expected empty ring after draining")
	}
}

func TestRingOverflowKeepsNewest(t *testing.T) {
	r := New(3)
	for i := 0; i < 5; i++ {
		r.Push(plumber.Message{Offset: uint64(i)})
	}
	if r.Len() != 3 {
		t.Fatalf("expected 3 buffered messages, got %d", r.Len())
	}
	for want := uint64(2); want <= 4; want++ {
		msg, ok := r.Pop()
		if !ok {
			t.Fatalf("expected message with offset %d", want)
		}
		if msg.Offset != want {
			t.Errorf("expected offset %d, got %d", want, msg.Offset)
		}
	}
}

func TestRingReportsEvicted(t *testing.T) {
	r := New(1)
	r.Push(plumber.Message{Offset: 0, Text: "first"})
	old, evicted := r.Push(plumber.Message{Offset: 1, Text: "second"})
	if !evicted {
		t.Fatal("expected eviction on full ring")
	}
	if old.Offset != 0 || old.Text != "first" {
		t.Errorf("expected evicted first message, got %+v", old)
	}
}

func TestRingConcurrent(t *testing.T) {
	const producers = 4
	const perProducer = 1000

	r := New(producers * perProducer)
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				r.Push(plumber.Message{Offset: uint64(p*perProducer + i)})
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for {
		msg, ok := r.Pop()
		if !ok {
			break
		}
		if seen[msg.Offset] {
			t.Fatalf("offset %d delivered twice", msg.Offset)
		}
		seen[msg.Offset] = true
	}
	if len(seen) != producers*perProducer {
		t.Errorf("expected %d messages, got %d", producers*perProducer, len(seen))
	}
}
