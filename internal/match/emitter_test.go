package match

import (
	"testing"

	"match_coordinator/internal/domain"
	"match_coordinator/internal/game"
)

func testMatch() *domain.Match {
	return domain.NewMatch("m1",
		domain.Participant{Identity: "alice"},
		domain.Participant{Identity: "bob"},
		true)
}

func TestEmitterDeduplicatesRedelivery(t *testing.T) {
	e := NewEmitter(testMatch())

	res := &TurnResult{
		MatchID: "m1",
		Turn:    1,
		Winner:  domain.TurnOutcome(domain.RoleP1),
		Moves: map[domain.Role]game.Move{
			domain.RoleP1: game.MoveRock,
			domain.RoleP2: game.MoveScissors,
		},
	}

	if !e.Apply(res, nil) {
		t.Fatal("first delivery should apply")
	}
	if e.Apply(res, nil) {
		t.Fatal("redelivery of the same turn must not apply")
	}
	if got := len(e.Audit().Turns); got != 1 {
		t.Fatalf("audit has %d turns; want 1", got)
	}
}

func TestEmitterAuditOrderAndSeal(t *testing.T) {
	e := NewEmitter(testMatch())

	for turn := 1; turn <= 3; turn++ {
		e.Apply(&TurnResult{
			MatchID: "m1",
			Turn:    turn,
			Winner:  domain.OutcomeDraw,
			Moves: map[domain.Role]game.Move{
				domain.RoleP1: game.MovePaper,
				domain.RoleP2: game.MovePaper,
			},
		}, map[domain.Role]string{domain.RoleP1: "c1", domain.RoleP2: "c2"})
	}
	e.Conclude(domain.TurnOutcome(domain.RoleP2), map[domain.Role]int{
		domain.RoleP1: 1, domain.RoleP2: 3,
	})

	a := e.Audit()
	if len(a.Turns) != 3 {
		t.Fatalf("audit has %d turns; want 3", len(a.Turns))
	}
	for i, ta := range a.Turns {
		if ta.Turn != i+1 {
			t.Fatalf("audit turn[%d] = %d; want %d", i, ta.Turn, i+1)
		}
		if ta.Commits[domain.RoleP1] != "c1" {
			t.Fatalf("audit lost commit record: %v", ta.Commits)
		}
	}
	if a.Winner != domain.TurnOutcome(domain.RoleP2) || a.P2Score != 3 {
		t.Fatalf("sealed audit = winner %s p2 %d; want P2 / 3", a.Winner, a.P2Score)
	}
	if a.ConcludedAt == nil {
		t.Fatal("sealed audit missing conclusion time")
	}
}

func TestCommitValueBindsContext(t *testing.T) {
	base := CommitValue("m1", domain.RoleP1, 1, game.MoveRock, "nonce")

	variants := []string{
		CommitValue("m2", domain.RoleP1, 1, game.MoveRock, "nonce"),
		CommitValue("m1", domain.RoleP2, 1, game.MoveRock, "nonce"),
		CommitValue("m1", domain.RoleP1, 2, game.MoveRock, "nonce"),
		CommitValue("m1", domain.RoleP1, 1, game.MovePaper, "nonce"),
		CommitValue("m1", domain.RoleP1, 1, game.MoveRock, "other"),
	}
	for i, v := range variants {
		if v == base {
			t.Fatalf("variant %d collides with base commit", i)
		}
	}

	if !validCommitValue(base) {
		t.Fatalf("commit value %q should be well-formed", base)
	}
	for _, bad := range []string{"", "zz", base[:10], base + "00"} {
		if validCommitValue(bad) {
			t.Fatalf("%q should be rejected as a commit value", bad)
		}
	}
}
