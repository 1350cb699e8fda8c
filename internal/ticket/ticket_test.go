package ticket

import (
	"errors"
	"sync"
	"testing"
	"time"

	"match_coordinator/internal/domain"
)

func TestIssueAndRedeem(t *testing.T) {
	iss := NewIssuer("test-secret", 30*time.Second)

	tok, err := iss.Issue("did:plc:alice", Target{MatchID: "m1", Role: domain.RoleP1})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	grant, err := iss.Redeem(tok, "did:plc:alice")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if grant.Identity != "did:plc:alice" || grant.MatchID != "m1" || grant.Role != domain.RoleP1 {
		t.Fatalf("unexpected grant: %+v", grant)
	}
}

func TestRedeemTwiceFails(t *testing.T) {
	iss := NewIssuer("test-secret", 30*time.Second)
	tok, _ := iss.Issue("alice", Target{MatchID: "m1", Role: domain.RoleP1})

	if _, err := iss.Redeem(tok, "alice"); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if _, err := iss.Redeem(tok, "alice"); !errors.Is(err, ErrTicketAlreadyUsed) {
		t.Fatalf("second redeem = %v; want ErrTicketAlreadyUsed", err)
	}
}

func TestRedeemConcurrentExactlyOneWins(t *testing.T) {
	iss := NewIssuer("test-secret", 30*time.Second)
	tok, _ := iss.Issue("alice", Target{MatchID: "m1", Role: domain.RoleP1})

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = iss.Redeem(tok, "alice")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrTicketAlreadyUsed):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("got %d successful redemptions; want exactly 1", wins)
	}
}

func TestRedeemIdentityMismatch(t *testing.T) {
	iss := NewIssuer("test-secret", 30*time.Second)
	tok, _ := iss.Issue("alice", Target{MatchID: "m1", Role: domain.RoleP1})

	if _, err := iss.Redeem(tok, "mallory"); !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("redeem as mallory = %v; want ErrIdentityMismatch", err)
	}

	// mismatch must not consume the ticket
	if _, err := iss.Redeem(tok, "alice"); err != nil {
		t.Fatalf("owner redeem after mismatch: %v", err)
	}
}

func TestRedeemExpired(t *testing.T) {
	iss := NewIssuer("test-secret", -time.Second)
	tok, _ := iss.Issue("alice", Target{MatchID: "m1", Role: domain.RoleP1})

	if _, err := iss.Redeem(tok, "alice"); !errors.Is(err, ErrTicketExpired) {
		t.Fatalf("redeem expired = %v; want ErrTicketExpired", err)
	}
}

func TestRedeemGarbage(t *testing.T) {
	iss := NewIssuer("test-secret", 30*time.Second)
	if _, err := iss.Redeem("not-a-token", "alice"); !errors.Is(err, ErrTicketInvalid) {
		t.Fatalf("redeem garbage = %v; want ErrTicketInvalid", err)
	}
}

func TestRedeemWrongSecret(t *testing.T) {
	other := NewIssuer("other-secret", 30*time.Second)
	tok, _ := other.Issue("alice", Target{MatchID: "m1", Role: domain.RoleP1})

	iss := NewIssuer("test-secret", 30*time.Second)
	if _, err := iss.Redeem(tok, "alice"); !errors.Is(err, ErrTicketInvalid) {
		t.Fatalf("redeem foreign token = %v; want ErrTicketInvalid", err)
	}
}

func TestResetAllowsNothingTwice(t *testing.T) {
	iss := NewIssuer("test-secret", 30*time.Second)
	tok, _ := iss.Issue("alice", Target{QueueID: "open"})
	if _, err := iss.Redeem(tok, "alice"); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	iss.Reset()

	// after reset the consumption table is gone; the same jti would be
	// accepted again, which is the documented operator-recovery trade-off
	if _, err := iss.Redeem(tok, "alice"); err != nil {
		t.Fatalf("redeem after reset: %v", err)
	}
}
