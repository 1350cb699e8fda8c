package ticket

import (
	"errors"
	"sync"
	"time"

	"match_coordinator/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTicketExpired     = errors.New("ticket expired")
	ErrTicketAlreadyUsed = errors.New("ticket already used")
	ErrIdentityMismatch  = errors.New("ticket identity mismatch")
	ErrTicketInvalid     = errors.New("ticket invalid")
)

// Target binds a ticket to one match seat, or to a queue slot when
// MatchID is empty.
type Target struct {
	MatchID string
	Role    domain.Role
	QueueID string
}

// Grant is the result of a successful redemption.
type Grant struct {
	Identity string
	MatchID  string
	Role     domain.Role
	QueueID  string
}

// Issuer mints short-lived single-use tickets as HS256 JWTs and tracks
// consumed ticket ids so a ticket redeems exactly once.
type Issuer struct {
	secret []byte
	ttl    time.Duration

	mu   sync.Mutex
	used map[string]time.Time // jti -> expiry, for pruning
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		used:   make(map[string]time.Time),
	}
}

// Issue mints a ticket for identity bound to target.
func (i *Issuer) Issue(identity string, target Target) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  identity,
		"mid":  target.MatchID,
		"role": string(target.Role),
		"qid":  target.QueueID,
		"jti":  uuid.NewString(),
		"iat":  now.Unix(),
		"nbf":  now.Unix(),
		"exp":  now.Add(i.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Redeem validates the ticket, checks it against the presenting
// identity and atomically marks it consumed. A second redemption of the
// same ticket observes ErrTicketAlreadyUsed.
func (i *Issuer) Redeem(tokenString, presentedIdentity string) (*Grant, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTicketExpired
		}
		return nil, ErrTicketInvalid
	}
	if !token.Valid {
		return nil, ErrTicketInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTicketInvalid
	}

	sub, _ := claims["sub"].(string)
	jti, _ := claims["jti"].(string)
	if sub == "" || jti == "" {
		return nil, ErrTicketInvalid
	}
	if sub != presentedIdentity {
		return nil, ErrIdentityMismatch
	}

	exp := time.Now().Add(i.ttl)
	if e, ok := claims["exp"].(float64); ok {
		exp = time.Unix(int64(e), 0)
	}

	i.mu.Lock()
	if _, consumed := i.used[jti]; consumed {
		i.mu.Unlock()
		return nil, ErrTicketAlreadyUsed
	}
	i.used[jti] = exp
	i.pruneLocked()
	i.mu.Unlock()

	mid, _ := claims["mid"].(string)
	role, _ := claims["role"].(string)
	qid, _ := claims["qid"].(string)

	return &Grant{
		Identity: sub,
		MatchID:  mid,
		Role:     domain.Role(role),
		QueueID:  qid,
	}, nil
}

// Reset clears the consumption table (operator recovery path).
func (i *Issuer) Reset() {
	i.mu.Lock()
	i.used = make(map[string]time.Time)
	i.mu.Unlock()
}

// pruneLocked drops entries for tickets that can no longer validate
// anyway. Caller holds i.mu.
func (i *Issuer) pruneLocked() {
	if len(i.used) < 1024 {
		return
	}
	now := time.Now()
	for jti, exp := range i.used {
		if now.After(exp) {
			delete(i.used, jti)
		}
	}
}
