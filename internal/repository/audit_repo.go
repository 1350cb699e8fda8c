package repository

import (
	"context"
	"encoding/json"
	"errors"

	"match_coordinator/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("match audit not found")

// AuditRepository persists concluded match trails for post-hoc
// fairness verification.
type AuditRepository struct {
	db *pgxpool.Pool
}

func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create stores a concluded match trail.
func (r *AuditRepository) Create(ctx context.Context, a *domain.MatchAudit) error {
	turnsJSON, err := json.Marshal(a.Turns)
	if err != nil {
		turnsJSON = []byte("[]")
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO match_audit
			(match_id, p1_identity, p2_identity, winner, p1_score, p2_score, turns, concluded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (match_id) DO NOTHING`,
		a.MatchID,
		a.P1Identity,
		a.P2Identity,
		string(a.Winner),
		a.P1Score,
		a.P2Score,
		turnsJSON,
		a.ConcludedAt,
	)
	return err
}

// GetByMatchID loads one match trail.
func (r *AuditRepository) GetByMatchID(ctx context.Context, matchID string) (*domain.MatchAudit, error) {
	var (
		a         domain.MatchAudit
		winner    string
		turnsJSON []byte
	)

	err := r.db.QueryRow(ctx,
		`SELECT match_id, p1_identity, p2_identity, winner, p1_score, p2_score, turns, concluded_at
		 FROM match_audit
		 WHERE match_id = $1`,
		matchID,
	).Scan(&a.MatchID, &a.P1Identity, &a.P2Identity, &winner, &a.P1Score, &a.P2Score, &turnsJSON, &a.ConcludedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	a.Winner = domain.TurnOutcome(winner)
	if err := json.Unmarshal(turnsJSON, &a.Turns); err != nil {
		return nil, err
	}
	return &a, nil
}
