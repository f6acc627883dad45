package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Chain is the durable, strictly ordered block store and the only writer path into it.
type Chain struct {
	db      *sql.DB
	dialect Dialect
	clock   func() time.Time
	logger  *slog.Logger
}

// Option configures a Chain.
type Option func(*Chain)

// WithClock injects the clock used to stamp appended blocks.
func WithClock(clock func() time.Time) Option {
	return func(c *Chain) { c.clock = clock }
}

// WithLogger sets the chain logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Chain) { c.logger = l }
}

// NewChain creates a chain store over db.
func NewChain(db *sql.DB, dialect Dialect, opts ...Option) *Chain {
	c := &Chain{
		db:      db,
		dialect: dialect,
		clock:   time.Now,
		logger:  slog.Default().With("component", "ledger"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DB returns the underlying database handle.
func (c *Chain) DB() *sql.DB { return c.db }

// Dialect returns the SQL dialect of the store.
func (c *Chain) Dialect() Dialect { return c.dialect }

// Init creates the ledger tables if they do not exist.
func (c *Chain) Init(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ledger: init schema: %w", err)
		}
	}
	return nil
}

// Append writes the next block inside the caller's transaction.
//
// The append lock and the latest-row lock are held until tx ends, so the whole
// read-compute-insert sequence is serialized against other appenders. A uniqueness
// rejection on insert is reported as ErrConflict and the caller must roll back.
func (c *Chain) Append(ctx context.Context, tx *sql.Tx, eventType EventType, payload Document) (*Block, error) {
	if tx == nil {
		return nil, ErrNilTx
	}
	if err := c.dialect.acquireAppendLock(ctx, tx); err != nil {
		return nil, err
	}

	latest, err := c.latest(ctx, tx, c.dialect.LockSuffix())
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	doc, payloadText, err := canonicalPayload(payload)
	if err != nil {
		return nil, err
	}

	block := &Block{
		Index:        0,
		Timestamp:    Timestamp(c.clock()),
		EventType:    eventType,
		Payload:      doc,
		PreviousHash: GenesisPreviousHash,
		Nonce:        0,
	}
	if latest != nil {
		block.Index = latest.Index + 1
		block.PreviousHash = latest.Hash
	}

	if block.Hash, err = block.ComputeHash(); err != nil {
		return nil, err
	}

	if err := insertBlock(ctx, tx, block, payloadText); err != nil {
		if IsUniqueViolation(err) {
			c.logger.WarnContext(ctx, "append rejected by uniqueness constraint",
				"index", block.Index, "event_type", eventType)
			return nil, fmt.Errorf("%w: index %d: %v", ErrConflict, block.Index, err)
		}
		return nil, fmt.Errorf("ledger: insert block %d: %w", block.Index, err)
	}

	c.logger.DebugContext(ctx, "block appended", "index", block.Index, "event_type", eventType, "hash", block.Hash)
	return block, nil
}

// GenesisBlock returns the fixed genesis block with its hash filled in.
func GenesisBlock() (*Block, error) {
	b := &Block{
		Index:        0,
		Timestamp:    GenesisTimestamp,
		EventType:    EventGenesis,
		PreviousHash: GenesisPreviousHash,
		Nonce:        0,
	}
	doc, _, err := canonicalPayload(GenesisPayload())
	if err != nil {
		return nil, err
	}
	b.Payload = doc
	if b.Hash, err = b.ComputeHash(); err != nil {
		return nil, err
	}
	return b, nil
}

// CreateGenesis inserts the genesis block. If index 0 is already taken the
// uniqueness constraint rejects the insert and ErrGenesisExists is returned.
func (c *Chain) CreateGenesis(ctx context.Context) (*Block, error) {
	g, err := GenesisBlock()
	if err != nil {
		return nil, err
	}
	_, text, err := canonicalPayload(g.Payload)
	if err != nil {
		return nil, err
	}
	if err := insertBlock(ctx, c.db, g, text); err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrGenesisExists
		}
		return nil, fmt.Errorf("ledger: insert genesis: %w", err)
	}
	c.logger.InfoContext(ctx, "genesis block created", "hash", g.Hash)
	return g, nil
}

// EnsureGenesis creates the genesis block unless one is already stored, and
// returns the stored block at index 0. A chain whose block 0 is anything other
// than the fixed genesis block yields ErrNoGenesis.
func (c *Chain) EnsureGenesis(ctx context.Context) (*Block, error) {
	g, err := c.CreateGenesis(ctx)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, ErrGenesisExists) {
		return nil, err
	}
	stored, err := c.BlockByIndex(ctx, 0)
	if err != nil {
		return nil, err
	}
	want, err := GenesisBlock()
	if err != nil {
		return nil, err
	}
	if stored.EventType != EventGenesis || stored.Hash != want.Hash {
		c.logger.ErrorContext(ctx, "block 0 is not the genesis block", "event_type", stored.EventType, "hash", stored.Hash)
		return nil, fmt.Errorf("%w: block 0 is %s %s", ErrNoGenesis, stored.EventType, stored.Hash)
	}
	return stored, nil
}

// Latest returns the block with the highest index, or ErrNotFound on an empty chain.
func (c *Chain) Latest(ctx context.Context) (*Block, error) {
	return c.latest(ctx, c.db, "")
}

func (c *Chain) latest(ctx context.Context, q Querier, lock string) (*Block, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+blockColumns+` FROM ledger_blocks ORDER BY block_index DESC LIMIT 1`+lock)
	b, err := scanBlock(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ledger: read latest block: %w", err)
	}
	return b, nil
}

// BlockByIndex returns the block stored at index.
func (c *Chain) BlockByIndex(ctx context.Context, index int64) (*Block, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM ledger_blocks WHERE block_index = $1`, index)
	b, err := scanBlock(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ledger: read block %d: %w", index, err)
	}
	return b, nil
}

// Blocks returns the whole chain in index order using one read statement, so the
// result is a single consistent snapshot even while appends continue.
func (c *Chain) Blocks(ctx context.Context) ([]Block, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+blockColumns+` FROM ledger_blocks ORDER BY block_index ASC`)
	if err != nil {
		return nil, fmt.Errorf("ledger: list blocks: %w", err)
	}
	return collectBlocks(rows)
}

// BlocksRange returns up to limit blocks starting at index from.
func (c *Chain) BlocksRange(ctx context.Context, from int64, limit int) ([]Block, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+blockColumns+` FROM ledger_blocks WHERE block_index >= $1 ORDER BY block_index ASC LIMIT $2`,
		from, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list blocks: %w", err)
	}
	return collectBlocks(rows)
}

// Count returns the number of stored blocks.
func (c *Chain) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_blocks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ledger: count blocks: %w", err)
	}
	return n, nil
}

func insertBlock(ctx context.Context, q Querier, b *Block, payloadText string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO ledger_blocks (`+blockColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.Index, b.Timestamp, string(b.EventType), payloadText, b.PreviousHash, b.Nonce, b.Hash)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner) (*Block, error) {
	var (
		b         Block
		eventType string
		payload   string
	)
	if err := row.Scan(&b.Index, &b.Timestamp, &eventType, &payload, &b.PreviousHash, &b.Nonce, &b.Hash); err != nil {
		return nil, err
	}
	b.EventType = EventType(eventType)
	doc, err := decodeDocument(payload)
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", b.Index, err)
	}
	b.Payload = doc
	return &b, nil
}

func collectBlocks(rows *sql.Rows) ([]Block, error) {
	defer func() { _ = rows.Close() }()

	blocks := make([]Block, 0)
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan block: %w", err)
		}
		blocks = append(blocks, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return blocks, nil
}

// RunInTx runs fn in one transaction. fn's error, or a failed commit, rolls back
// every write fn made, including any appended block.
func RunInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger: commit: %w", err)
	}
	return nil
}
