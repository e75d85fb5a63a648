package checkout

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMutualExclusion(t *testing.T) {
	m := NewManager()

	m.CheckOut(42)

	entered := make(chan struct{})
	go func() {
		m.CheckOut(42)
		close(entered)
		m.CheckIn(42)
	}()

	select {
	case <-entered:
		t.Fatal("second caller entered critical section before CheckIn")
	case <-time.After(50 * time.Millisecond):
	}

	m.CheckIn(42)

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("second caller never entered after CheckIn")
	}
}

func TestIndependentIDsDoNotBlock(t *testing.T) {
	m := NewManager()

	m.CheckOut(1)
	defer m.CheckIn(1)

	done := make(chan struct{})
	go func() {
		m.CheckOut(2)
		m.CheckIn(2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unrelated id blocked behind a held checkout")
	}
}

func TestWithReleasesOnError(t *testing.T) {
	m := NewManager()
	sentinel := errors.New("boom")

	if err := m.With(7, func() error { return sentinel }); !errors.Is(err, sentinel) {
		t.Fatalf("With returned %v, want sentinel", err)
	}

	// The lock must be free again.
	done := make(chan struct{})
	go func() {
		m.CheckOut(7)
		m.CheckIn(7)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock not released after With returned an error")
	}
}

func TestConcurrentCountersSerialize(t *testing.T) {
	m := NewManager()
	var counter int

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.With(99, func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
	if m.Size() != 1 {
		t.Errorf("Size = %d, want 1", m.Size())
	}
}
