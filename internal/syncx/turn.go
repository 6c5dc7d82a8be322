package syncx

import (
	"context"
	"fmt"
	"sync"
)

// Turn is a round-robin token shared by a fixed set of participants
// numbered 1..n. Exactly one participant holds the token at any time.
// Waiters block on a condition variable and are woken only when the token
// moves or their context ends.
//
// The mutex guarding the token is exposed through Lock/Unlock so that other
// state owned by the token holder can live under the same lock.
type Turn struct {
	mu     sync.Mutex
	cond   *sync.Cond
	n      int
	holder int
	passes uint64
}

// NewTurn creates a token for n participants with first holding it.
func NewTurn(n, first int) (*Turn, error) {
	if n < 1 {
		return nil, fmt.Errorf("turn: need at least one participant, got %d", n)
	}
	if first < 1 || first > n {
		return nil, fmt.Errorf("turn: first holder %d out of range 1..%d", first, n)
	}
	t := &Turn{n: n, holder: first}
	t.cond = sync.NewCond(&t.mu)
	return t, nil
}

// Lock acquires the token's mutex.
func (t *Turn) Lock() { t.mu.Lock() }

// Unlock releases the token's mutex.
func (t *Turn) Unlock() { t.mu.Unlock() }

// Wait blocks until id holds the token or ctx is done.
func (t *Turn) Wait(ctx context.Context, id int) error {
	if err := t.check(id); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		t.mu.Lock()
		t.cond.Broadcast()
		t.mu.Unlock()
	})
	defer stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	for t.holder != id {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.cond.Wait()
	}
	return ctx.Err()
}

// Pass hands the token from id to the next participant and wakes waiters.
// It returns the new holder. Passing a token id does not hold is an error
// and leaves the token unchanged.
func (t *Turn) Pass(id int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.PassLocked(id)
}

// PassLocked is Pass for callers already holding the mutex.
func (t *Turn) PassLocked(id int) (int, error) {
	if t.holder != id {
		return t.holder, fmt.Errorf("turn: participant %d passed token held by %d", id, t.holder)
	}
	t.holder = id%t.n + 1
	t.passes++
	t.cond.Broadcast()
	return t.holder, nil
}

// Holder returns the current holder.
func (t *Turn) Holder() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.holder
}

// Passes returns how many times the token has moved.
func (t *Turn) Passes() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.passes
}

func (t *Turn) check(id int) error {
	if id < 1 || id > t.n {
		return fmt.Errorf("turn: participant %d out of range 1..%d", id, t.n)
	}
	return nil
}
