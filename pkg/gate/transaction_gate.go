// Package gate implements the Transaction-State Gate: a
// weighted-owner confirmation ledger consulted once per evaluation. It is a
// plain map-based quorum predicate with copy-out reads (Owners); it holds
// no lock of its own.
package gate

import "fmt"

// MaxOwners is the hard cap on owner count.
const MaxOwners = 250

// PermissionError signals a Gate operation referenced an unknown/empty
// owner id, or an owner-count/min-score invariant would be violated.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission error: %s", e.Reason)
}

// Gate is a mapping owner_id -> weight plus owner_id -> confirmed, plus a
// min_score threshold. is_confirmed holds iff the confirmed owners' summed
// weight meets min_score.
//
// Gate is not safe for concurrent use without external synchronization:
// Product, Report, and Transaction-State Gate are per-evaluation/per-caller
// resources. Callers sharing a Gate across goroutines must add their own
// locking.
type Gate struct {
	weights   map[string]uint32
	confirmed map[string]bool
	order     []string // insertion order, for deterministic Snapshot
	minScore  uint32
	minScoreSet bool
}

// New returns an empty Gate. min_score defaults to floor(owners/2), and to
// at least 1 once any owner is registered; see minScoreOrDefault.
func New() *Gate {
	return &Gate{
		weights:   make(map[string]uint32),
		confirmed: make(map[string]bool),
	}
}

// AddOwner registers owner with the given weight (default 1 if weight == 0
// is not requested by caller; spec leaves weight default at the call site,
// callers typically pass 1 explicitly). Fails if id is empty, already
// present, or owner count would exceed MaxOwners.
func (g *Gate) AddOwner(id string, weight uint32) error {
	if id == "" {
		return &PermissionError{Reason: "owner id must not be empty"}
	}
	if _, exists := g.weights[id]; exists {
		return &PermissionError{Reason: fmt.Sprintf("owner %q already registered", id)}
	}
	if len(g.weights) >= MaxOwners {
		return &PermissionError{Reason: fmt.Sprintf("owner count would exceed %d", MaxOwners)}
	}
	if weight == 0 {
		weight = 1
	}
	g.weights[id] = weight
	g.confirmed[id] = false
	g.order = append(g.order, id)
	return nil
}

// RemoveOwner drops an owner entirely. Fails with *PermissionError if id is
// unknown or empty.
func (g *Gate) RemoveOwner(id string) error {
	if err := g.requireOwner(id); err != nil {
		return err
	}
	delete(g.weights, id)
	delete(g.confirmed, id)
	for i, o := range g.order {
		if o == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return nil
}

// Confirm marks id as confirmed.
func (g *Gate) Confirm(id string) error {
	if err := g.requireOwner(id); err != nil {
		return err
	}
	g.confirmed[id] = true
	return nil
}

// Revoke marks id as not confirmed.
func (g *Gate) Revoke(id string) error {
	if err := g.requireOwner(id); err != nil {
		return err
	}
	g.confirmed[id] = false
	return nil
}

// RevokeAll clears every owner's confirmed flag. This is the guaranteed
// post-evaluation step the Evaluator runs after every Validate call (spec
// §4.E "Post-flight"), success or failure.
func (g *Gate) RevokeAll() {
	for id := range g.confirmed {
		g.confirmed[id] = false
	}
}

// SetMinScore sets the quorum threshold. Requires n >= 1.
func (g *Gate) SetMinScore(n uint32) error {
	if n < 1 {
		return &PermissionError{Reason: "min_score must be >= 1"}
	}
	g.minScore = n
	g.minScoreSet = true
	return nil
}

// CurrentScore returns the summed weight of confirmed owners.
func (g *Gate) CurrentScore() uint32 {
	var score uint32
	for id, ok := range g.confirmed {
		if ok {
			score += g.weights[id]
		}
	}
	return score
}

// minScoreOrDefault returns the configured min_score, or
// floor(len(owners)/2) if none was set, raised to 1 when there is at least
// one owner (so a lone owner must confirm). A Gate with no owners defaults
// to 0.
func (g *Gate) minScoreOrDefault() uint32 {
	if g.minScoreSet {
		return g.minScore
	}
	d := uint32(len(g.weights) / 2)
	if d == 0 && len(g.weights) > 0 {
		d = 1
	}
	return d
}

// IsConfirmed reports whether the summed confirmed weight meets min_score.
func (g *Gate) IsConfirmed() bool {
	return g.CurrentScore() >= g.minScoreOrDefault()
}

// OwnerConfirmed reports a single owner's confirmed flag (used by tests and
// by gate-clear invariant checks).
func (g *Gate) OwnerConfirmed(id string) (bool, error) {
	if err := g.requireOwner(id); err != nil {
		return false, err
	}
	return g.confirmed[id], nil
}

// Owners returns the registered owner ids in insertion order.
func (g *Gate) Owners() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

func (g *Gate) requireOwner(id string) error {
	if id == "" {
		return &PermissionError{Reason: "owner id must not be empty"}
	}
	if _, exists := g.weights[id]; !exists {
		return &PermissionError{Reason: fmt.Sprintf("unknown owner %q", id)}
	}
	return nil
}
