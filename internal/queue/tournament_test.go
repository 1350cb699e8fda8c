package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"match_coordinator/internal/domain"
	"match_coordinator/internal/ticket"
)

func newTestTournament() (*Tournament, *Registry) {
	reg := NewRegistry()
	iss := ticket.NewIssuer("test-secret", 30*time.Second)
	var seq atomic.Int64
	start := func(p1, p2 Entrant, openPlay bool) (string, error) {
		return fmt.Sprintf("t-%d", seq.Add(1)), nil
	}
	startBot := func(p Entrant) (string, error) {
		return fmt.Sprintf("t-bot-%d", seq.Add(1)), nil
	}
	return NewTournament(reg, iss, start, startBot), reg
}

func TestRoundPairsInRegistrationOrder(t *testing.T) {
	tr, _ := newTestTournament()

	tr.Register("cup", "alice", "Alice")
	tr.Register("cup", "bob", "Bob")
	tr.Register("cup", "carol", "Carol")
	tr.Register("cup", "dave", "Dave")

	if pairs := tr.StartRound("cup", 1); pairs != 2 {
		t.Fatalf("pairs = %d; want 2", pairs)
	}

	a, err := tr.Await(context.Background(), "cup", "alice", time.Second)
	if err != nil || a == nil {
		t.Fatalf("alice assignment: %v %v", a, err)
	}
	if a.Role != domain.RoleP1 || a.Peer.Identity != "bob" {
		t.Fatalf("alice got %+v; want P1 vs bob", a)
	}

	c, err := tr.Await(context.Background(), "cup", "carol", time.Second)
	if err != nil || c == nil || c.Peer.Identity != "dave" {
		t.Fatalf("carol got %+v (%v); want vs dave", c, err)
	}
}

func TestRegisterIdempotent(t *testing.T) {
	tr, _ := newTestTournament()
	tr.Register("cup", "alice", "Alice")
	tr.Register("cup", "alice", "Alice")
	tr.Register("cup", "bob", "Bob")

	if pairs := tr.StartRound("cup", 1); pairs != 1 {
		t.Fatalf("pairs = %d; want 1 (duplicate registration ignored)", pairs)
	}
}

func TestOddEntrantGetsBotSeat(t *testing.T) {
	tr, reg := newTestTournament()
	tr.Register("cup", "alice", "Alice")
	tr.Register("cup", "bob", "Bob")
	tr.Register("cup", "carol", "Carol")

	tr.StartRound("cup", 1)

	a, err := tr.Await(context.Background(), "cup", "carol", time.Second)
	if err != nil || a == nil {
		t.Fatalf("carol assignment: %v %v", a, err)
	}
	if a.Role != domain.RoleP1 || a.Peer.Identity != "bot" {
		t.Fatalf("carol got %+v; want P1 against the house", a)
	}
	if m, ok := reg.Get("carol"); !ok || m.Kind != KindInMatch {
		t.Fatalf("carol membership = %+v; want in_match", m)
	}
}

func TestAwaitBeforeRoundStartsBlocksThenDelivers(t *testing.T) {
	tr, _ := newTestTournament()
	tr.Register("cup", "alice", "Alice")
	tr.Register("cup", "bob", "Bob")

	got := make(chan *Assignment, 1)
	go func() {
		a, _ := tr.Await(context.Background(), "cup", "alice", 2*time.Second)
		got <- a
	}()

	time.Sleep(20 * time.Millisecond)
	tr.StartRound("cup", 1)

	select {
	case a := <-got:
		if a == nil {
			t.Fatal("await returned nil after round start")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("await never delivered")
	}
}

func TestAwaitTimeoutMeansKeepPolling(t *testing.T) {
	tr, _ := newTestTournament()
	tr.Register("cup", "alice", "Alice")

	a, err := tr.Await(context.Background(), "cup", "alice", 20*time.Millisecond)
	if err != nil || a != nil {
		t.Fatalf("await = (%v, %v); want (nil, nil) keep-polling signal", a, err)
	}

	// a later round start still reaches the poller
	tr.Register("cup", "bob", "Bob")
	tr.StartRound("cup", 1)
	a, err = tr.Await(context.Background(), "cup", "alice", time.Second)
	if err != nil || a == nil {
		t.Fatalf("second await = (%v, %v); want assignment", a, err)
	}
}

func TestResetUnblocksTournamentAwait(t *testing.T) {
	tr, _ := newTestTournament()
	tr.Register("cup", "alice", "Alice")

	res := make(chan error, 1)
	go func() {
		_, err := tr.Await(context.Background(), "cup", "alice", 2*time.Second)
		res <- err
	}()
	time.Sleep(20 * time.Millisecond)
	tr.Reset()

	select {
	case err := <-res:
		if !errors.Is(err, ErrNotQueued) {
			t.Fatalf("await after reset = %v; want ErrNotQueued", err)
		}
	case <-time.After(time.Second):
		t.Fatal("await still blocked after reset")
	}
}

func TestBusyEntrantSitsRoundOut(t *testing.T) {
	reg := NewRegistry()
	iss := ticket.NewIssuer("test-secret", 30*time.Second)
	var seq atomic.Int64
	start := func(p1, p2 Entrant, openPlay bool) (string, error) {
		return fmt.Sprintf("m-%d", seq.Add(1)), nil
	}
	startBot := func(p Entrant) (string, error) {
		return fmt.Sprintf("m-bot-%d", seq.Add(1)), nil
	}
	q := New("open", reg, iss, start)
	tr := NewTournament(reg, iss, start, startBot)

	// alice waits in the open queue, then registers for the cup too
	q.Enqueue("alice", "Alice")
	tr.Register("cup", "alice", "Alice")
	tr.Register("cup", "bob", "Bob")
	tr.Register("cup", "carol", "Carol")

	// alice sits the round out; bob and carol pair with each other
	if pairs := tr.StartRound("cup", 1); pairs != 1 {
		t.Fatalf("pairs = %d; want 1", pairs)
	}
	b, err := tr.Await(context.Background(), "cup", "bob", time.Second)
	if err != nil || b == nil || b.Peer.Identity != "carol" {
		t.Fatalf("bob got %+v (%v); want vs carol", b, err)
	}

	// her queue membership is untouched
	if m, ok := reg.Get("alice"); !ok || m.Kind != KindQueued {
		t.Fatalf("alice membership = %+v; want still queued", m)
	}
	if d := q.Depth(); d != 1 {
		t.Fatalf("queue depth = %d; want 1", d)
	}

	// in-match identities are skipped the same way
	tr.Register("cup", "bob", "Bob")
	if pairs := tr.StartRound("cup", 2); pairs != 0 {
		t.Fatalf("pairs = %d with bob mid-match; want 0", pairs)
	}
}
