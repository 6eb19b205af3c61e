package action

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"weltgrid/economy"
	"weltgrid/geom"
	"weltgrid/worldstore"
)

// NodeLookup is the narrow seam into the spatial analyzer's settlement node
// map that the expansion gate needs. Pipeline depends on this interface, not
// on the spatial package directly, so action has no import-time dependency
// on spatial even though §4's component order lists Spatial after Action;
// spatial.Analyzer satisfies this interface structurally.
type NodeLookup interface {
	NearestNode(x, z float64) (geom.NearestNodeInfo, bool)
}

// EventKind tags what kind of change Broadcaster.Publish carries.
type EventKind string

const (
	EventPrimitiveAdded   EventKind = "primitive_added"
	EventPrimitiveRemoved EventKind = "primitive_removed"
	EventChat             EventKind = "chat"
	EventTerminal         EventKind = "terminal"
	EventAgentPresence    EventKind = "agent_presence"
	EventDirective        EventKind = "directive"
)

// Event is one fan-out message from the pipeline to the sync fabric. Per the
// Design Notes, this is message passing: Publish must never be called while
// Pipeline holds any lock, and Broadcaster implementations must not block the
// caller for longer than handing the event to a channel.
type Event struct {
	Kind      EventKind
	Primitive *worldstore.Primitive
	Chat      *ChatMessage
	Terminal  *TerminalMessage
	AgentID   string
	Online    bool
	Directive string
}

type Broadcaster interface {
	Publish(Event)
}

// ChatMessage is one chat entry, assigned a monotonically increasing id in
// commit order.
type ChatMessage struct {
	ID        int64     `json:"id"`
	AgentID   string    `json:"agentId"`
	AgentName string    `json:"agentName"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// TerminalMessage is a system-authored entry (e.g. "agent X built a box at
// (105, 100)"), sharing the chat log's monotonic id space conceptually but
// tracked with its own counter since it has no authoring agent.
type TerminalMessage struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Persister is the subset of the persistence collaborator the pipeline
// writes through synchronously, so a crash after a successful in-memory
// commit still has a durable record to reconstruct from at boot.
type Persister interface {
	CreatePrimitiveWithCreditDebit(p worldstore.Primitive, cost int) error
	DeletePrimitive(id string) error
	WriteChatMessage(msg ChatMessage) error
	WriteTerminalMessage(msg TerminalMessage) error
	UpsertBlueprintBuildPlan(plan worldstore.BlueprintPlan) error
	DeleteBlueprintBuildPlan(agentID string) error
}

// Pipeline is the single entry point for every per-agent action. It composes
// the world store, ledger, geometry policy, throttle, node lookup, persister
// and broadcaster; none of its methods hold any lock across a call to
// Persister or Broadcaster.
type Pipeline struct {
	Store     *worldstore.Store
	Ledger    *economy.Ledger
	Policy    geom.Policy
	Throttle  *Throttle
	Nodes     NodeLookup
	Persist   Persister
	Broadcast Broadcaster

	// Directives and DirectivePersist are both optional: CreateDirective
	// makes a board on first use when none is wired, and without a
	// DirectivePersist directives live only in memory (see directive.go).
	Directives       *economy.DirectiveBoard
	DirectivePersist DirectivePersister

	chatSeq     atomic.Int64
	terminalSeq atomic.Int64
}

func New(store *worldstore.Store, ledger *economy.Ledger, policy geom.Policy, persist Persister, broadcast Broadcaster) *Pipeline {
	return &Pipeline{
		Store:     store,
		Ledger:    ledger,
		Policy:    policy,
		Throttle:  NewThrottle(),
		Persist:   persist,
		Broadcast: broadcast,
	}
}

func newID() string {
	return uuid.NewString()
}

func (p *Pipeline) nextChatID() int64 {
	return p.chatSeq.Add(1)
}

func (p *Pipeline) nextTerminalID() int64 {
	return p.terminalSeq.Add(1)
}

func (p *Pipeline) publish(evt Event) {
	if p.Broadcast != nil {
		p.Broadcast.Publish(evt)
	}
}
