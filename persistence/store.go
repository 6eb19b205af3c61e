// Package persistence is the relational collaborator behind worldstore's
// boot reconstruction and the action pipeline's durable writes. It is the
// only package in the module that talks to a database; everything upstream
// depends on the narrow Loader/Persister interfaces worldstore, economy, and
// action already define, never on *SQLiteStore directly.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
	"gopkg.in/yaml.v3"

	"weltgrid/action"
	"weltgrid/geom"
	"weltgrid/worldstore"
)

// SQLiteStore implements worldstore.Loader, economy.Loader, and
// action.Persister over one sqlite database, opened with WAL so the tick
// goroutine's reads don't contend with the action pipeline's writes.
type SQLiteStore struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the sqlite database at path and applies
// the schema. Safe to call against an existing, already-migrated database.
func Open(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("persistence: open: %w", err)
	}
	store := &SQLiteStore{db: db}
	if err := store.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Migrate applies the schema; it is idempotent and is also what `worldsimd
// migrate` calls standalone.
func (s *SQLiteStore) Migrate() error {
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("persistence: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- worldstore.Loader ---

type agentRow struct {
	ID         string    `db:"id"`
	OwnerID    string    `db:"owner_id"`
	Name       string    `db:"name"`
	Color      string    `db:"color"`
	Bio        string    `db:"bio"`
	PosX       float64   `db:"pos_x"`
	PosY       float64   `db:"pos_y"`
	PosZ       float64   `db:"pos_z"`
	TargetX    float64   `db:"target_x"`
	TargetY    float64   `db:"target_y"`
	TargetZ    float64   `db:"target_z"`
	Status     string    `db:"status"`
	LastSeenAt time.Time `db:"last_seen_at"`
}

func (r agentRow) toAgent() worldstore.Agent {
	a := worldstore.Agent{
		ID: r.ID, OwnerID: r.OwnerID, Name: r.Name, Color: r.Color, Bio: r.Bio,
		Position:       geom.Vec3{X: r.PosX, Y: r.PosY, Z: r.PosZ},
		TargetPosition: geom.Vec3{X: r.TargetX, Y: r.TargetY, Z: r.TargetZ},
		LastSeenAt:     r.LastSeenAt,
	}
	_ = a.Status.UnmarshalText([]byte(r.Status))
	return a
}

func agentToRow(a worldstore.Agent) agentRow {
	statusText, _ := a.Status.MarshalText()
	return agentRow{
		ID: a.ID, OwnerID: a.OwnerID, Name: a.Name, Color: a.Color, Bio: a.Bio,
		PosX: a.Position.X, PosY: a.Position.Y, PosZ: a.Position.Z,
		TargetX: a.TargetPosition.X, TargetY: a.TargetPosition.Y, TargetZ: a.TargetPosition.Z,
		Status: string(statusText), LastSeenAt: a.LastSeenAt,
	}
}

func (s *SQLiteStore) LoadAgents() ([]worldstore.Agent, error) {
	var rows []agentRow
	if err := s.db.Select(&rows, `SELECT * FROM agents`); err != nil {
		return nil, fmt.Errorf("persistence: load agents: %w", err)
	}
	agents := make([]worldstore.Agent, len(rows))
	for i, r := range rows {
		agents[i] = r.toAgent()
	}
	return agents, nil
}

// UpsertAgent writes the agent's current row, replacing any prior row for
// the same id.
func (s *SQLiteStore) UpsertAgent(a worldstore.Agent) error {
	row := agentToRow(a)
	_, err := s.db.NamedExec(`
		INSERT INTO agents (id, owner_id, name, color, bio, pos_x, pos_y, pos_z, target_x, target_y, target_z, status, last_seen_at)
		VALUES (:id, :owner_id, :name, :color, :bio, :pos_x, :pos_y, :pos_z, :target_x, :target_y, :target_z, :status, :last_seen_at)
		ON CONFLICT(id) DO UPDATE SET
			owner_id=excluded.owner_id, name=excluded.name, color=excluded.color, bio=excluded.bio,
			pos_x=excluded.pos_x, pos_y=excluded.pos_y, pos_z=excluded.pos_z,
			target_x=excluded.target_x, target_y=excluded.target_y, target_z=excluded.target_z,
			status=excluded.status, last_seen_at=excluded.last_seen_at
	`, row)
	if err != nil {
		return fmt.Errorf("persistence: upsert agent: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAgent(id string) (worldstore.Agent, bool, error) {
	var row agentRow
	err := s.db.Get(&row, `SELECT * FROM agents WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return worldstore.Agent{}, false, nil
	}
	if err != nil {
		return worldstore.Agent{}, false, fmt.Errorf("persistence: get agent: %w", err)
	}
	return row.toAgent(), true, nil
}

func (s *SQLiteStore) TouchAgent(id string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE agents SET last_seen_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("persistence: touch agent: %w", err)
	}
	return nil
}

// ListAgentsInRadius returns every agent whose position lies within radius
// of (x, z), as a plain range predicate over the flattened pos columns
// (EXPANSION 3.1) rather than a full scan filtered in Go.
func (s *SQLiteStore) ListAgentsInRadius(x, z, radius float64) ([]worldstore.Agent, error) {
	var rows []agentRow
	err := s.db.Select(&rows, `
		SELECT * FROM agents
		WHERE pos_x BETWEEN ? AND ? AND pos_z BETWEEN ? AND ?
	`, x-radius, x+radius, z-radius, z+radius)
	if err != nil {
		return nil, fmt.Errorf("persistence: list agents in radius: %w", err)
	}
	agents := make([]worldstore.Agent, 0, len(rows))
	for _, r := range rows {
		a := r.toAgent()
		if geom.DistanceXZ(a.Position.XZ(), geom.Vec2XZ{X: x, Z: z}) <= radius {
			agents = append(agents, a)
		}
	}
	return agents, nil
}

type primitiveRow struct {
	ID             string    `db:"id"`
	OwnerAgentID   string    `db:"owner_agent_id"`
	OwnerAgentName string    `db:"owner_agent_name"`
	Shape          string    `db:"shape"`
	PosX           float64   `db:"pos_x"`
	PosY           float64   `db:"pos_y"`
	PosZ           float64   `db:"pos_z"`
	RotX           float64   `db:"rot_x"`
	RotY           float64   `db:"rot_y"`
	RotZ           float64   `db:"rot_z"`
	ScaleX         float64   `db:"scale_x"`
	ScaleY         float64   `db:"scale_y"`
	ScaleZ         float64   `db:"scale_z"`
	Color          string    `db:"color"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r primitiveRow) toPrimitive() worldstore.Primitive {
	shape, ok := geom.ParseShape(r.Shape)
	if !ok {
		shape = geom.ShapeBox
	}
	return worldstore.Primitive{
		ID: r.ID, OwnerAgentID: r.OwnerAgentID, OwnerAgentName: r.OwnerAgentName,
		Shape:     shape,
		Position:  geom.Vec3{X: r.PosX, Y: r.PosY, Z: r.PosZ},
		Rotation:  geom.Vec3{X: r.RotX, Y: r.RotY, Z: r.RotZ},
		Scale:     geom.Vec3{X: r.ScaleX, Y: r.ScaleY, Z: r.ScaleZ},
		Color:     r.Color,
		CreatedAt: r.CreatedAt,
	}
}

func primitiveToRow(p worldstore.Primitive) primitiveRow {
	return primitiveRow{
		ID: p.ID, OwnerAgentID: p.OwnerAgentID, OwnerAgentName: p.OwnerAgentName,
		Shape: p.Shape.String(),
		PosX:  p.Position.X, PosY: p.Position.Y, PosZ: p.Position.Z,
		RotX: p.Rotation.X, RotY: p.Rotation.Y, RotZ: p.Rotation.Z,
		ScaleX: p.Scale.X, ScaleY: p.Scale.Y, ScaleZ: p.Scale.Z,
		Color: p.Color, CreatedAt: p.CreatedAt,
	}
}

func (s *SQLiteStore) LoadPrimitives() ([]worldstore.Primitive, error) {
	var rows []primitiveRow
	if err := s.db.Select(&rows, `SELECT * FROM primitives ORDER BY created_at ASC`); err != nil {
		return nil, fmt.Errorf("persistence: load primitives: %w", err)
	}
	primitives := make([]worldstore.Primitive, len(rows))
	for i, r := range rows {
		primitives[i] = r.toPrimitive()
	}
	return primitives, nil
}

// ErrInsufficientCredits and ErrConflict mirror the §6 persistence contract's
// {ok|insufficient_credits|conflict} outcomes for createPrimitiveWithCreditDebit.
var (
	ErrInsufficientCredits = errors.New("persistence: insufficient credits")
	ErrConflict            = errors.New("persistence: conflict")
)

// CreatePrimitiveWithCreditDebit satisfies action.Persister: within one
// transaction, it checks the owning agent's balance, debits cost, and
// inserts the primitive row, so a crash between the two never leaves a
// primitive persisted without its debit (or vice versa). The in-memory
// economy.Ledger has already performed this same check-and-debit atomically
// (DebitAndPlace) before this call — this is the durable mirror of that
// decision, not a second authority over it.
func (s *SQLiteStore) CreatePrimitiveWithCreditDebit(p worldstore.Primitive, cost int) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("persistence: begin: %w", err)
	}
	defer tx.Rollback()

	var balance int
	err = tx.Get(&balance, `SELECT balance FROM credits WHERE agent_id = ?`, p.OwnerAgentID)
	if errors.Is(err, sql.ErrNoRows) {
		balance = 0
	} else if err != nil {
		return fmt.Errorf("persistence: read balance: %w", err)
	}
	if balance < cost {
		return ErrInsufficientCredits
	}

	_, err = tx.Exec(`
		INSERT INTO credits (agent_id, balance) VALUES (?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET balance = balance - ?
	`, p.OwnerAgentID, balance-cost, cost)
	if err != nil {
		return fmt.Errorf("persistence: debit: %w", err)
	}

	row := primitiveToRow(p)
	_, err = tx.NamedExec(`
		INSERT INTO primitives (id, owner_agent_id, owner_agent_name, shape, pos_x, pos_y, pos_z, rot_x, rot_y, rot_z, scale_x, scale_y, scale_z, color, created_at)
		VALUES (:id, :owner_agent_id, :owner_agent_name, :shape, :pos_x, :pos_y, :pos_z, :rot_x, :rot_y, :rot_z, :scale_x, :scale_y, :scale_z, :color, :created_at)
	`, row)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) DeletePrimitive(id string) error {
	_, err := s.db.Exec(`DELETE FROM primitives WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("persistence: delete primitive: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ClearAllPrimitives() error {
	_, err := s.db.Exec(`DELETE FROM primitives`)
	if err != nil {
		return fmt.Errorf("persistence: clear primitives: %w", err)
	}
	return nil
}

// --- economy.Loader + credits ---

func (s *SQLiteStore) LoadCredits() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT agent_id, balance FROM credits`)
	if err != nil {
		return nil, fmt.Errorf("persistence: load credits: %w", err)
	}
	defer rows.Close()

	balances := make(map[string]int)
	for rows.Next() {
		var id string
		var balance int
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, fmt.Errorf("persistence: scan credits: %w", err)
		}
		balances[id] = balance
	}
	return balances, rows.Err()
}

func (s *SQLiteStore) GetCredits(agentID string) (int, error) {
	var balance int
	err := s.db.Get(&balance, `SELECT balance FROM credits WHERE agent_id = ?`, agentID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("persistence: get credits: %w", err)
	}
	return balance, nil
}

// TransferCredits mirrors economy.Ledger.Transfer's durable record: a single
// UPDATE per side inside one transaction.
func (s *SQLiteStore) TransferCredits(fromAgentID, toAgentID string, amount int) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("persistence: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO credits (agent_id, balance) VALUES (?, -?)
		ON CONFLICT(agent_id) DO UPDATE SET balance = balance - ?
	`, fromAgentID, amount, amount); err != nil {
		return fmt.Errorf("persistence: debit sender: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO credits (agent_id, balance) VALUES (?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET balance = balance + ?
	`, toAgentID, amount, amount); err != nil {
		return fmt.Errorf("persistence: credit recipient: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) MarkEntryFeePaid(agentID string) error {
	_, err := s.db.Exec(`
		INSERT INTO entry_fees (agent_id, paid_at) VALUES (?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET paid_at = excluded.paid_at
	`, agentID, time.Now())
	if err != nil {
		return fmt.Errorf("persistence: mark entry fee paid: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordUsedTxHash(hash string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO used_tx_hashes (tx_hash, used_at) VALUES (?, ?)`, hash, time.Now())
	if err != nil {
		return fmt.Errorf("persistence: record used tx hash: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IsTxHashUsed(hash string) (bool, error) {
	var count int
	err := s.db.Get(&count, `SELECT COUNT(*) FROM used_tx_hashes WHERE tx_hash = ?`, hash)
	if err != nil {
		return false, fmt.Errorf("persistence: is tx hash used: %w", err)
	}
	return count > 0, nil
}

// --- Blueprint plans ---

type blueprintPlanRow struct {
	AgentID           string    `db:"agent_id"`
	BlueprintName     string    `db:"blueprint_name"`
	AnchorX           float64   `db:"anchor_x"`
	AnchorZ           float64   `db:"anchor_z"`
	AllPrimitivesYAML string    `db:"all_primitives_yaml"`
	PhasesYAML        string    `db:"phases_yaml"`
	TotalPrimitives   int       `db:"total_primitives"`
	PlacedCount       int       `db:"placed_count"`
	FailedCount       int       `db:"failed_count"`
	NextIndex         int       `db:"next_index"`
	StartedAt         time.Time `db:"started_at"`
}

func (r blueprintPlanRow) toPlan() (worldstore.BlueprintPlan, error) {
	plan := worldstore.BlueprintPlan{
		AgentID: r.AgentID, BlueprintName: r.BlueprintName,
		Anchor:          geom.Vec2XZ{X: r.AnchorX, Z: r.AnchorZ},
		TotalPrimitives: r.TotalPrimitives, PlacedCount: r.PlacedCount,
		FailedCount: r.FailedCount, NextIndex: r.NextIndex, StartedAt: r.StartedAt,
	}
	if err := yaml.Unmarshal([]byte(r.AllPrimitivesYAML), &plan.AllPrimitives); err != nil {
		return worldstore.BlueprintPlan{}, fmt.Errorf("persistence: unmarshal plan primitives: %w", err)
	}
	if err := yaml.Unmarshal([]byte(r.PhasesYAML), &plan.Phases); err != nil {
		return worldstore.BlueprintPlan{}, fmt.Errorf("persistence: unmarshal plan phases: %w", err)
	}
	return plan, nil
}

func planToRow(p worldstore.BlueprintPlan) (blueprintPlanRow, error) {
	allYAML, err := yaml.Marshal(p.AllPrimitives)
	if err != nil {
		return blueprintPlanRow{}, fmt.Errorf("persistence: marshal plan primitives: %w", err)
	}
	phasesYAML, err := yaml.Marshal(p.Phases)
	if err != nil {
		return blueprintPlanRow{}, fmt.Errorf("persistence: marshal plan phases: %w", err)
	}
	return blueprintPlanRow{
		AgentID: p.AgentID, BlueprintName: p.BlueprintName,
		AnchorX: p.Anchor.X, AnchorZ: p.Anchor.Z,
		AllPrimitivesYAML: string(allYAML), PhasesYAML: string(phasesYAML),
		TotalPrimitives: p.TotalPrimitives, PlacedCount: p.PlacedCount,
		FailedCount: p.FailedCount, NextIndex: p.NextIndex, StartedAt: p.StartedAt,
	}, nil
}

func (s *SQLiteStore) UpsertBlueprintBuildPlan(plan worldstore.BlueprintPlan) error {
	row, err := planToRow(plan)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExec(`
		INSERT INTO blueprint_plans (agent_id, blueprint_name, anchor_x, anchor_z, all_primitives_yaml, phases_yaml, total_primitives, placed_count, failed_count, next_index, started_at)
		VALUES (:agent_id, :blueprint_name, :anchor_x, :anchor_z, :all_primitives_yaml, :phases_yaml, :total_primitives, :placed_count, :failed_count, :next_index, :started_at)
		ON CONFLICT(agent_id) DO UPDATE SET
			blueprint_name=excluded.blueprint_name, anchor_x=excluded.anchor_x, anchor_z=excluded.anchor_z,
			all_primitives_yaml=excluded.all_primitives_yaml, phases_yaml=excluded.phases_yaml,
			total_primitives=excluded.total_primitives, placed_count=excluded.placed_count,
			failed_count=excluded.failed_count, next_index=excluded.next_index, started_at=excluded.started_at
	`, row)
	if err != nil {
		return fmt.Errorf("persistence: upsert blueprint plan: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteBlueprintBuildPlan(agentID string) error {
	_, err := s.db.Exec(`DELETE FROM blueprint_plans WHERE agent_id = ?`, agentID)
	if err != nil {
		return fmt.Errorf("persistence: delete blueprint plan: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadBlueprintBuildPlans() ([]worldstore.BlueprintPlan, error) {
	var rows []blueprintPlanRow
	if err := s.db.Select(&rows, `SELECT * FROM blueprint_plans`); err != nil {
		return nil, fmt.Errorf("persistence: load blueprint plans: %w", err)
	}
	plans := make([]worldstore.BlueprintPlan, 0, len(rows))
	for _, r := range rows {
		plan, err := r.toPlan()
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// --- Chat / terminal log ---

func (s *SQLiteStore) WriteChatMessage(msg action.ChatMessage) error {
	_, err := s.db.Exec(`
		INSERT INTO chat_messages (agent_id, agent_name, message, created_at) VALUES (?, ?, ?, ?)
	`, msg.AgentID, msg.AgentName, msg.Message, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("persistence: write chat message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) WriteTerminalMessage(msg action.TerminalMessage) error {
	_, err := s.db.Exec(`INSERT INTO terminal_messages (message, created_at) VALUES (?, ?)`, msg.Message, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("persistence: write terminal message: %w", err)
	}
	return nil
}

type chatRow struct {
	ID        int64     `db:"id"`
	AgentID   string    `db:"agent_id"`
	AgentName string    `db:"agent_name"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *SQLiteStore) ListRecentChat(limit int) ([]action.ChatMessage, error) {
	var rows []chatRow
	if err := s.db.Select(&rows, `SELECT * FROM chat_messages ORDER BY id DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("persistence: list recent chat: %w", err)
	}
	out := make([]action.ChatMessage, len(rows))
	for i, r := range rows {
		out[i] = action.ChatMessage{ID: r.ID, AgentID: r.AgentID, AgentName: r.AgentName, Message: r.Message, CreatedAt: r.CreatedAt}
	}
	return out, nil
}

type terminalRow struct {
	ID        int64     `db:"id"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *SQLiteStore) ListRecentTerminal(limit int) ([]action.TerminalMessage, error) {
	var rows []terminalRow
	if err := s.db.Select(&rows, `SELECT * FROM terminal_messages ORDER BY id DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("persistence: list recent terminal: %w", err)
	}
	out := make([]action.TerminalMessage, len(rows))
	for i, r := range rows {
		out[i] = action.TerminalMessage{ID: r.ID, Message: r.Message, CreatedAt: r.CreatedAt}
	}
	return out, nil
}

// --- Directives ---

func (s *SQLiteStore) CreateDirective(id, description string) error {
	_, err := s.db.Exec(`INSERT INTO directives (id, description, status, created_at) VALUES (?, ?, 'open', ?)`,
		id, description, time.Now())
	if err != nil {
		return fmt.Errorf("persistence: create directive: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CastVote(directiveID, agentID string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO directive_votes (directive_id, agent_id) VALUES (?, ?)`, directiveID, agentID)
	if err != nil {
		return fmt.Errorf("persistence: cast vote: %w", err)
	}
	return nil
}

// CompleteDirective is idempotent: the UPDATE only matches rows still
// 'open', so a second call is a harmless no-op affecting zero rows — the
// same status-transition guard economy.DirectiveBoard.Complete uses
// in-memory.
func (s *SQLiteStore) CompleteDirective(directiveID string) error {
	_, err := s.db.Exec(`UPDATE directives SET status = 'completed', completed_at = ? WHERE id = ? AND status = 'open'`,
		time.Now(), directiveID)
	if err != nil {
		return fmt.Errorf("persistence: complete directive: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RewardDirectiveVoters(directiveID string, amount int) ([]string, error) {
	var voters []string
	if err := s.db.Select(&voters, `SELECT agent_id FROM directive_votes WHERE directive_id = ?`, directiveID); err != nil {
		return nil, fmt.Errorf("persistence: list directive voters: %w", err)
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("persistence: begin: %w", err)
	}
	defer tx.Rollback()

	for _, agentID := range voters {
		if _, err := tx.Exec(`
			INSERT INTO credits (agent_id, balance) VALUES (?, ?)
			ON CONFLICT(agent_id) DO UPDATE SET balance = balance + ?
		`, agentID, amount, amount); err != nil {
			return nil, fmt.Errorf("persistence: reward voter: %w", err)
		}
	}
	return voters, tx.Commit()
}

// --- Agent memory ---

// Bounds on agent_memory, enforced here in Go rather than via a DB trigger
// so the constraint is visible in one place instead of split between schema
// and code (EXPANSION 6.2).
const (
	maxMemoryKeysPerAgent = 10
	maxMemoryValueBytes   = 10 * 1024
	minMemoryWriteGap     = 5 * time.Second
)

var (
	ErrMemoryTooManyKeys  = errors.New("persistence: agent already has 10 memory keys")
	ErrMemoryValueTooBig  = errors.New("persistence: memory value exceeds 10KB")
	ErrMemoryWriteTooSoon = errors.New("persistence: memory write rate limit (1 per 5s)")
)

// MemoryStore tracks the last-write timestamp per agent in process memory,
// since the 1-write-per-5s bound is a rate limit, not data the schema itself
// needs to persist.
type MemoryStore struct {
	store      *SQLiteStore
	lastWrite  map[string]time.Time
}

func NewMemoryStore(store *SQLiteStore) *MemoryStore {
	return &MemoryStore{store: store, lastWrite: make(map[string]time.Time)}
}

func (m *MemoryStore) SetAgentMemory(agentID, key, value string) error {
	if len(value) > maxMemoryValueBytes {
		return ErrMemoryValueTooBig
	}
	if last, ok := m.lastWrite[agentID]; ok && time.Since(last) < minMemoryWriteGap {
		return ErrMemoryWriteTooSoon
	}

	var count int
	err := m.store.db.Get(&count, `SELECT COUNT(*) FROM agent_memory WHERE agent_id = ? AND key != ?`, agentID, key)
	if err != nil {
		return fmt.Errorf("persistence: count agent memory keys: %w", err)
	}
	if count >= maxMemoryKeysPerAgent {
		return ErrMemoryTooManyKeys
	}

	_, err = m.store.db.Exec(`
		INSERT INTO agent_memory (agent_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(agent_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, agentID, key, value, time.Now())
	if err != nil {
		return fmt.Errorf("persistence: set agent memory: %w", err)
	}
	m.lastWrite[agentID] = time.Now()
	return nil
}

func (m *MemoryStore) GetAgentMemory(agentID, key string) (string, bool, error) {
	var value string
	err := m.store.db.Get(&value, `SELECT value FROM agent_memory WHERE agent_id = ? AND key = ?`, agentID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("persistence: get agent memory: %w", err)
	}
	return value, true, nil
}

func (m *MemoryStore) DeleteAgentMemory(agentID, key string) error {
	_, err := m.store.db.Exec(`DELETE FROM agent_memory WHERE agent_id = ? AND key = ?`, agentID, key)
	if err != nil {
		return fmt.Errorf("persistence: delete agent memory: %w", err)
	}
	return nil
}
