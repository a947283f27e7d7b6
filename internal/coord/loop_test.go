package coord

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoopRunsInOrder(t *testing.T) {
	l := New(zerolog.Nop())
	defer l.Close()

	var got []int
	for i := 0; i < 100; i++ {
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Do(func() {}); err != nil {
		t.Fatalf("Do: %v", err)
	}

	if len(got) != 100 {
		t.Fatalf("ran %d posts, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("post %d ran as %d", i, v)
		}
	}
}

func TestLoopSerializesConcurrentPosts(t *testing.T) {
	l := New(zerolog.Nop())
	defer l.Close()

	// counter is only touched on the loop; the race detector flags any overlap.
	counter := 0
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				if i%50 == 0 {
					l.Do(func() { counter++ })
					continue
				}
				l.Post(func() { counter++ })
			}
		}()
	}
	wg.Wait()

	var final int
	l.Do(func() { final = counter })
	if final != 2000 {
		t.Errorf("counter = %d, want 2000", final)
	}
}

func TestLoopCloseDrains(t *testing.T) {
	l := New(zerolog.Nop())

	ran := 0
	block := make(chan struct{})
	l.Post(func() { <-block })
	for i := 0; i < 10; i++ {
		l.Post(func() { ran++ })
	}
	close(block)
	l.Close()

	if ran != 10 {
		t.Errorf("Close ran %d queued posts, want 10", ran)
	}

	l.Post(func() { ran++ })
	if err := l.Do(func() { ran++ }); !errors.Is(err, ErrClosed) {
		t.Errorf("Do after Close: got %v, want ErrClosed", err)
	}
	if ran != 10 {
		t.Error("work submitted after Close ran")
	}

	// Second close returns.
	l.Close()
}

func TestLoopRecoversPanics(t *testing.T) {
	l := New(zerolog.Nop())
	defer l.Close()

	l.Post(func() { panic("boom") })
	ran := false
	if err := l.Do(func() { ran = true }); err != nil || !ran {
		t.Fatalf("loop stopped after panic: ran=%v err=%v", ran, err)
	}
}
