package event

import (
	"sync"
	"testing"
	"time"
)

func TestQueueDeliversInOrder(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	const n = 1000
	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		i := i
		q.Enqueue(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	if len(got) != n {
		t.Fatalf("delivered %d items, want %d", len(got), n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("item %d delivered out of order (got %d)", i, v)
		}
	}
}

func TestQueueNeverRunsOnCaller(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	callerDone := make(chan struct{})
	ran := make(chan struct{})

	q.Enqueue(func() {
		// Must not run synchronously inside Enqueue.
		select {
		case <-callerDone:
		case <-time.After(2 * time.Second):
			t.Error("delivery ran before Enqueue returned")
		}
		close(ran)
	})
	close(callerDone)

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("item never delivered")
	}
}

func TestQueueCloseDiscardsPending(t *testing.T) {
	q := NewQueue()

	block := make(chan struct{})
	started := make(chan struct{})
	q.Enqueue(func() {
		close(started)
		<-block
	})
	<-started

	var delivered int
	var mu sync.Mutex
	for i := 0; i < 10; i++ {
		q.Enqueue(func() {
			mu.Lock()
			delivered++
			mu.Unlock()
		})
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(block)
	}()
	q.Close()

	mu.Lock()
	defer mu.Unlock()
	if delivered != 0 {
		t.Errorf("%d pending items ran after Close, want 0", delivered)
	}

	// Enqueue after close is a silent drop.
	q.Enqueue(func() { t.Error("enqueue after close must not run") })
	time.Sleep(20 * time.Millisecond)
}

func TestQueueCloseTwice(t *testing.T) {
	q := NewQueue()
	q.Close()
	q.Close() // must not panic or hang
}
