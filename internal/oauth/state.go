package oauth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	domain "github.com/dmaier/listify/pkg/types"
)

const stateTTL = 10 * time.Minute

type pendingState struct {
	provider domain.Provider
	issuedAt time.Time
}

// stateRegistry tracks outstanding authorization states so callbacks can be
// tied back to a redirect we actually issued. States are single use and
// expire after stateTTL.
type stateRegistry struct {
	mu      sync.Mutex
	states  map[string]pendingState
	nowFunc func() time.Time
}

func newStateRegistry(nowFunc func() time.Time) *stateRegistry {
	return &stateRegistry{
		states:  make(map[string]pendingState),
		nowFunc: nowFunc,
	}
}

// Issue mints a random state token bound to the provider.
func (r *stateRegistry) Issue(provider domain.Provider) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	state := hex.EncodeToString(buf)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.gcLocked()
	r.states[state] = pendingState{
		provider: provider,
		issuedAt: r.nowFunc(),
	}

	return state, nil
}

// Verify consumes a state token. It reports false for unknown, expired, or
// cross-provider states.
func (r *stateRegistry) Verify(provider domain.Provider, state string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending, ok := r.states[state]
	if !ok {
		return false
	}
	delete(r.states, state)

	if pending.provider != provider {
		return false
	}
	return r.nowFunc().Sub(pending.issuedAt) <= stateTTL
}

func (r *stateRegistry) gcLocked() {
	cutoff := r.nowFunc().Add(-stateTTL)
	for state, pending := range r.states {
		if pending.issuedAt.Before(cutoff) {
			delete(r.states, state)
		}
	}
}
