package alerting

import (
	"sync"
	"time"

	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"

	"github.com/google/uuid"
)

type ResolveResult string

const (
	ResolveOK               ResolveResult = "ok"
	ResolveAlreadyProcessed ResolveResult = "already_processed"
	ResolveExpired          ResolveResult = "expired"
	ResolveNotFound         ResolveResult = "not_found"
)

// ActionToken is a one-time handle on an accepted alert.
type ActionToken struct {
	Token       string            `json:"token"`
	Alert       models.AlertEvent `json:"alert_data"`
	AlertRowID  int64             `json:"alert_row_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
	Processed   bool              `json:"processed"`
	ProcessedAt *time.Time        `json:"processed_at,omitempty"`
	Action      models.ActionType `json:"action,omitempty"`
}

// TokenRegistry issues and resolves action tokens. Resolution is a single
// check-and-set under the registry lock, so a token resolves at most once.
type TokenRegistry struct {
	tokens map[string]*ActionToken
	ttl    time.Duration
	now    Clock
	log    *logger.Logger
	mu     sync.Mutex
}

func NewTokenRegistry(ttl time.Duration, log *logger.Logger, now Clock) *TokenRegistry {
	if now == nil {
		now = time.Now
	}
	return &TokenRegistry{
		tokens: make(map[string]*ActionToken),
		ttl:    ttl,
		now:    now,
		log:    log.Named("tokens"),
	}
}

func (r *TokenRegistry) Issue(alert models.AlertEvent, rowID int64) ActionToken {
	now := r.now()
	t := &ActionToken{
		Token:      uuid.NewString(),
		Alert:      alert,
		AlertRowID: rowID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(r.ttl),
	}

	r.mu.Lock()
	r.tokens[t.Token] = t
	r.mu.Unlock()

	return *t
}

// Lookup reports the token state without consuming it. Expired tokens are evicted.
func (r *TokenRegistry) Lookup(token string) (ActionToken, ResolveResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inspect(token)
}

func (r *TokenRegistry) inspect(token string) (ActionToken, ResolveResult) {
	t, ok := r.tokens[token]
	if !ok {
		return ActionToken{}, ResolveNotFound
	}
	if r.now().After(t.ExpiresAt) {
		delete(r.tokens, token)
		return *t, ResolveExpired
	}
	if t.Processed {
		return *t, ResolveAlreadyProcessed
	}
	return *t, ResolveOK
}

// Resolve consumes the token with action. Only the first call on a live
// token returns ResolveOK.
func (r *TokenRegistry) Resolve(token string, action models.ActionType) (ActionToken, ResolveResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, res := r.inspect(token)
	if res != ResolveOK {
		return t, res
	}

	now := r.now()
	live := r.tokens[token]
	live.Processed = true
	live.ProcessedAt = &now
	live.Action = action

	r.log.Info("token %s resolved with %s for %s", token, action, live.Alert.Equipment)
	return *live, ResolveOK
}

// Sweep removes every expired token, processed or not.
func (r *TokenRegistry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for k, t := range r.tokens {
		if now.After(t.ExpiresAt) {
			delete(r.tokens, k)
			n++
		}
	}
	return n
}

type TokenStats struct {
	TotalLinks     int            `json:"total_links"`
	ActiveLinks    int            `json:"active_links"`
	ProcessedLinks int            `json:"processed_links"`
	ActionStats    map[string]int `json:"action_stats"`
}

func (r *TokenRegistry) Stats() TokenStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	stats := TokenStats{
		TotalLinks: len(r.tokens),
		ActionStats: map[string]int{
			string(models.ActionInterlock): 0,
			string(models.ActionBypass):    0,
		},
	}
	for _, t := range r.tokens {
		switch {
		case t.Processed:
			stats.ProcessedLinks++
			stats.ActionStats[string(t.Action)]++
		case !now.After(t.ExpiresAt):
			stats.ActiveLinks++
		}
	}
	return stats
}

func (r *TokenRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

func (r *TokenRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = make(map[string]*ActionToken)
}

// Link builds the operator URL for a token.
func Link(publicBaseURL, token string) string {
	return publicBaseURL + "/action/" + token
}
