package economy

import (
	"errors"
	"sync"
)

// DirectiveStatus is the two-state lifecycle a community directive moves
// through: open while votes are being collected, completed once rewarded.
type DirectiveStatus string

const (
	DirectiveOpen      DirectiveStatus = "open"
	DirectiveCompleted DirectiveStatus = "completed"
)

// Directive is a lightweight community proposal agents can vote on;
// completion rewards every voter exactly once. This supplements the spec's
// distilled scope with the minimal state machine its own external interfaces
// already imply (createDirective/castVote/completeDirective/
// rewardDirectiveVoters all appear in the persistence and read/broadcast
// contracts).
type Directive struct {
	ID          string
	Description string
	Votes       map[string]bool
	Status      DirectiveStatus
}

var ErrDirectiveNotFound = errors.New("economy: directive not found")
var ErrDirectiveAlreadyCompleted = errors.New("economy: directive already completed")

// DirectiveBoard tracks open and completed directives in memory; persistence
// mirrors every state transition through its own createDirective/castVote/
// completeDirective calls so a restart can reload in-flight directives.
type DirectiveBoard struct {
	mu         sync.Mutex
	directives map[string]*Directive
}

func NewDirectiveBoard() *DirectiveBoard {
	return &DirectiveBoard{directives: make(map[string]*Directive)}
}

func (b *DirectiveBoard) Create(id, description string) *Directive {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := &Directive{ID: id, Description: description, Votes: make(map[string]bool), Status: DirectiveOpen}
	b.directives[id] = d
	return d
}

func (b *DirectiveBoard) CastVote(directiveID, agentID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.directives[directiveID]
	if !ok {
		return ErrDirectiveNotFound
	}
	if d.Status == DirectiveCompleted {
		return ErrDirectiveAlreadyCompleted
	}
	d.Votes[agentID] = true
	return nil
}

// Complete transitions the directive to completed and returns the set of
// voters to reward. It is idempotent: the status transition itself is the
// dedup guard (the same technique DebitAndPlace's credit check already
// uses), so calling Complete twice only rewards voters once — the second
// call returns ErrDirectiveAlreadyCompleted and an empty voter set.
func (b *DirectiveBoard) Complete(directiveID string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.directives[directiveID]
	if !ok {
		return nil, ErrDirectiveNotFound
	}
	if d.Status == DirectiveCompleted {
		return nil, ErrDirectiveAlreadyCompleted
	}
	d.Status = DirectiveCompleted

	voters := make([]string, 0, len(d.Votes))
	for agentID := range d.Votes {
		voters = append(voters, agentID)
	}
	return voters, nil
}

// RewardDirectiveVoters grants amount to every voter. Paired with Complete's
// own idempotency, a caller invoking this from an HTTP handler retried after
// a network blip can never double-pay: the second Complete call returns
// ErrDirectiveAlreadyCompleted and an empty voter list, so there is nothing
// left to reward.
func (l *Ledger) RewardDirectiveVoters(voters []string, amount int) {
	for _, agentID := range voters {
		l.Grant(agentID, amount)
	}
}

func (b *DirectiveBoard) Get(directiveID string) (Directive, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.directives[directiveID]
	if !ok {
		return Directive{}, false
	}
	return *d, true
}
