package resource

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestOnceRunsFnExactlyOnce(t *testing.T) {
	var cell Once[int]
	var calls int32

	var wg sync.WaitGroup
	results := make([]int, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := cell.Get(func() (int, error) {
				atomic.AddInt32(&calls, 1)
				return 42, nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[idx] = v
		}(i)
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected fn to run exactly once, ran %d times", calls)
	}
	for i, v := range results {
		if v != 42 {
			t.Fatalf("caller %d got %d, want 42", i, v)
		}
	}
}

func TestOnceCachesSubsequentCalls(t *testing.T) {
	var cell Once[string]
	var calls int

	for i := 0; i < 5; i++ {
		v, err := cell.Get(func() (string, error) {
			calls++
			return "loaded", nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != "loaded" {
			t.Fatalf("got %q, want %q", v, "loaded")
		}
	}

	if calls != 1 {
		t.Fatalf("expected fn to run once across repeat calls, ran %d times", calls)
	}
}

func TestOnceCachesErrors(t *testing.T) {
	var cell Once[int]
	wantErr := errSentinel{}

	_, err := cell.Get(func() (int, error) {
		return 0, wantErr
	})
	if err != wantErr {
		t.Fatalf("got %v, want %v", err, wantErr)
	}

	_, err = cell.Get(func() (int, error) {
		t.Fatal("fn should not run again after a cached error")
		return 1, nil
	})
	if err != wantErr {
		t.Fatalf("got %v, want cached %v", err, wantErr)
	}
}

func TestOnceResolvedReflectsCompletion(t *testing.T) {
	var cell Once[int]
	if cell.Resolved() {
		t.Fatal("expected Resolved to be false before Get is called")
	}

	cell.Get(func() (int, error) { return 1, nil })

	if !cell.Resolved() {
		t.Fatal("expected Resolved to be true after Get completes")
	}
}

type errSentinel struct{}

func (errSentinel) Error() string { return "sentinel" }
