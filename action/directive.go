package action

import "weltgrid/economy"

// DirectivePersister is the durability seam for community directives. It's
// kept separate from Persister since only a Pipeline wired up with a
// DirectiveBoard needs it; Pipeline instances built for tests that never
// touch directives can leave both nil.
type DirectivePersister interface {
	CreateDirective(id, description string) error
	CastVote(directiveID, agentID string) error
	CompleteDirective(directiveID string) error
	RewardDirectiveVoters(directiveID string, amount int) ([]string, error)
}

type DirectiveResult struct {
	Status string `json:"status"`
}

type DirectiveCompletionResult struct {
	Status string   `json:"status"`
	Voters []string `json:"voters"`
}

// CreateDirective opens a new community proposal for voting.
func (p *Pipeline) CreateDirective(id, description string) (DirectiveResult, *Error) {
	if p.Directives == nil {
		p.Directives = economy.NewDirectiveBoard()
	}
	p.Directives.Create(id, description)

	if p.DirectivePersist != nil {
		if err := p.DirectivePersist.CreateDirective(id, description); err != nil {
			return DirectiveResult{}, newRetryableErr(KindPersistenceUnavailable, "directive could not be persisted")
		}
	}

	p.publish(Event{Kind: EventDirective, Directive: id})
	return DirectiveResult{Status: "open"}, nil
}

// CastDirectiveVote records one agent's vote on an open directive.
func (p *Pipeline) CastDirectiveVote(directiveID, agentID string) (DirectiveResult, *Error) {
	if p.Directives == nil {
		return DirectiveResult{}, newErr(KindInvalidBody, "unknown directive")
	}
	if err := p.Directives.CastVote(directiveID, agentID); err != nil {
		return DirectiveResult{}, newErr(KindInvalidBody, err.Error())
	}

	if p.DirectivePersist != nil {
		if err := p.DirectivePersist.CastVote(directiveID, agentID); err != nil {
			return DirectiveResult{}, newRetryableErr(KindPersistenceUnavailable, "vote could not be persisted")
		}
	}

	p.publish(Event{Kind: EventDirective, Directive: directiveID})
	return DirectiveResult{Status: "voted"}, nil
}

// CompleteDirective closes voting and rewards every voter once. The board's
// open-to-completed transition is what prevents a second payout: a repeated
// call fails there before anything is granted. With a DirectivePersist wired,
// the voters rewarded are the ones persistence returns; otherwise they are
// the board's own voter list.
func (p *Pipeline) CompleteDirective(directiveID string, rewardAmount int) (DirectiveCompletionResult, *Error) {
	if p.Directives == nil {
		return DirectiveCompletionResult{}, newErr(KindInvalidBody, "unknown directive")
	}
	boardVoters, err := p.Directives.Complete(directiveID)
	if err != nil {
		return DirectiveCompletionResult{}, newErr(KindInvalidBody, err.Error())
	}

	voters := boardVoters
	if p.DirectivePersist != nil {
		if err := p.DirectivePersist.CompleteDirective(directiveID); err != nil {
			return DirectiveCompletionResult{}, newRetryableErr(KindPersistenceUnavailable, "directive completion could not be persisted")
		}
		rewarded, err := p.DirectivePersist.RewardDirectiveVoters(directiveID, rewardAmount)
		if err != nil {
			return DirectiveCompletionResult{}, newRetryableErr(KindPersistenceUnavailable, "directive reward could not be persisted")
		}
		voters = rewarded
	}

	p.Ledger.RewardDirectiveVoters(voters, rewardAmount)
	p.publish(Event{Kind: EventDirective, Directive: directiveID})
	return DirectiveCompletionResult{Status: "completed", Voters: voters}, nil
}
