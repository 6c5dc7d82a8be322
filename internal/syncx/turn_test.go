package syncx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewTurnValidation(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		first   int
		wantErr bool
	}{
		{"two workers", 2, 1, false},
		{"start on second", 2, 2, false},
		{"single", 1, 1, false},
		{"zero participants", 0, 1, true},
		{"first too high", 2, 3, true},
		{"first zero", 2, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTurn(tt.n, tt.first)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewTurn(%d, %d) err = %v, wantErr %v", tt.n, tt.first, err, tt.wantErr)
			}
		})
	}
}

func TestTurnPassRoundRobin(t *testing.T) {
	turn, _ := NewTurn(3, 1)

	want := []int{2, 3, 1, 2}
	id := 1
	for i, w := range want {
		next, err := turn.Pass(id)
		if err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
		if next != w {
			t.Errorf("pass %d: holder = %d, want %d", i, next, w)
		}
		id = next
	}
	if got := turn.Passes(); got != 4 {
		t.Errorf("Passes() = %d, want 4", got)
	}
}

func TestTurnPassByNonHolder(t *testing.T) {
	turn, _ := NewTurn(2, 1)

	if _, err := turn.Pass(2); err == nil {
		t.Fatal("Pass by non-holder should fail")
	}
	if got := turn.Holder(); got != 1 {
		t.Errorf("Holder() = %d, want 1 after rejected pass", got)
	}
}

func TestTurnWaitReturnsForHolder(t *testing.T) {
	turn, _ := NewTurn(2, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := turn.Wait(ctx, 1); err != nil {
		t.Errorf("Wait(1) = %v, want nil", err)
	}
}

func TestTurnWaitWakesOnPass(t *testing.T) {
	turn, _ := NewTurn(2, 1)
	done := make(chan error, 1)

	go func() {
		done <- turn.Wait(context.Background(), 2)
	}()

	select {
	case <-done:
		t.Fatal("Wait(2) returned before token moved")
	case <-time.After(20 * time.Millisecond):
	}

	if _, err := turn.Pass(1); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait(2) = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait(2) not woken by Pass")
	}
}

func TestTurnWaitCancelled(t *testing.T) {
	turn, _ := NewTurn(2, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- turn.Wait(ctx, 2)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Wait = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait not woken by cancellation")
	}
}

func TestTurnWaitOutOfRange(t *testing.T) {
	turn, _ := NewTurn(2, 1)
	if err := turn.Wait(context.Background(), 3); err == nil {
		t.Error("Wait(3) should fail for a two-party turn")
	}
}

func TestTurnStrictAlternation(t *testing.T) {
	turn, _ := NewTurn(2, 1)
	const rounds = 50

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for id := 1; id <= 2; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				if err := turn.Wait(context.Background(), id); err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				order = append(order, id)
				mu.Unlock()
				if _, err := turn.Pass(id); err != nil {
					t.Error(err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	if len(order) != 2*rounds {
		t.Fatalf("got %d turns, want %d", len(order), 2*rounds)
	}
	for i, id := range order {
		if want := i%2 + 1; id != want {
			t.Fatalf("turn %d taken by %d, want %d", i, id, want)
		}
	}
}
