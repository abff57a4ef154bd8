package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestAcquireLocal(t *testing.T) {
	g := New(nil, 0)
	ctx := context.Background()

	release, err := g.Acquire(ctx, "s1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := g.Acquire(ctx, "s1"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	other, err := g.Acquire(ctx, "s2")
	if err != nil {
		t.Fatalf("other shipment must not be blocked: %v", err)
	}
	other()

	release()
	again, err := g.Acquire(ctx, "s1")
	if err != nil {
		t.Fatalf("re-acquire after release: %v", err)
	}
	again()
}

func TestAcquireConcurrent(t *testing.T) {
	g := New(nil, 0)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
		holds   []func()
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := g.Acquire(ctx, "same")
			if err != nil {
				return
			}
			mu.Lock()
			granted++
			holds = append(holds, release)
			mu.Unlock()
		}()
	}
	wg.Wait()
	if granted != 1 {
		t.Fatalf("expected exactly one holder, got %d", granted)
	}
	for _, h := range holds {
		h()
	}
}
