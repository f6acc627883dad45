// Package audit is the ledger facade the rest of the application talks to: appending
// blocks and event records inside a caller's transaction, and verifying the chain
// or one entity's history.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/ledger"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/observability"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/verifier"
)

var (
	// ErrUnknownEntityType is returned when no StateSource is registered for an entity type.
	ErrUnknownEntityType = errors.New("audit: unknown entity type")
	// ErrInvalidEntry is returned for entries missing their entity identity or actor.
	ErrInvalidEntry = errors.New("audit: invalid entry")
)

// StateSource reads the current row of one kind of ledgered entity and hashes its snapshot.
type StateSource interface {
	// CurrentSnapshotHash returns the snapshot hash of the entity as stored now,
	// or ledger.ErrNotFound.
	CurrentSnapshotHash(ctx context.Context, entityID string) (string, error)
}

// Service wraps a chain with verification, metrics and logging.
type Service struct {
	chain  *ledger.Chain
	obs    *observability.Provider
	logger *slog.Logger

	mu      sync.RWMutex
	sources map[string]StateSource
}

// Option configures a Service.
type Option func(*Service)

// WithObservability sets the telemetry provider.
func WithObservability(p *observability.Provider) Option {
	return func(s *Service) { s.obs = p }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(chain *ledger.Chain, opts ...Option) *Service {
	s := &Service{
		chain:   chain,
		obs:     observability.Disabled(),
		logger:  slog.Default().With("component", "audit"),
		sources: make(map[string]StateSource),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chain returns the underlying chain store.
func (s *Service) Chain() *ledger.Chain { return s.chain }

// RegisterSource makes entityType verifiable through VerifyEntity.
func (s *Service) RegisterSource(entityType string, src StateSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[entityType] = src
}

// EntityTypes lists the registered entity types.
func (s *Service) EntityTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sources))
	for t := range s.sources {
		out = append(out, t)
	}
	return out
}

func (s *Service) source(entityType string) (StateSource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[entityType]
	return src, ok
}

// Append writes a block inside tx. The block is durable only if tx commits.
func (s *Service) Append(ctx context.Context, tx *sql.Tx, eventType ledger.EventType, payload ledger.Document) (*ledger.Block, error) {
	ctx, finish := s.obs.TrackOperation(ctx, "ledger.append", observability.AttrEventType.String(string(eventType)))
	b, err := s.chain.Append(ctx, tx, eventType, payload)
	finish(err)
	if err != nil {
		return nil, err
	}
	s.obs.BlockAppended(ctx, string(eventType))
	return b, nil
}

// VerifyChain reads the whole chain in one statement and verifies it.
func (s *Service) VerifyChain(ctx context.Context) (*verifier.ChainReport, error) {
	ctx, finish := s.obs.TrackOperation(ctx, "ledger.verify_chain")
	blocks, err := s.chain.Blocks(ctx)
	finish(err)
	if err != nil {
		return nil, fmt.Errorf("audit: read chain: %w", err)
	}
	report := verifier.VerifyChain(blocks)
	if !report.Valid {
		s.obs.VerificationFailed(ctx, "chain")
		s.logger.WarnContext(ctx, "chain verification failed", "reason", report.Reason, "blocks", report.TotalBlocks)
	}
	return report, nil
}

// VerifyEntity replays one entity's ledger history against its current row.
func (s *Service) VerifyEntity(ctx context.Context, entityType, entityID string) (*verifier.EntityReport, error) {
	src, ok := s.source(entityType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}

	ctx, finish := s.obs.TrackOperation(ctx, "ledger.verify_entity", observability.EntityOperation(entityType, entityID)...)
	current, err := src.CurrentSnapshotHash(ctx, entityID)
	if err != nil {
		finish(err)
		return nil, err
	}
	events, err := s.chain.EntityEvents(ctx, entityType, entityID)
	finish(err)
	if err != nil {
		return nil, fmt.Errorf("audit: read entity events: %w", err)
	}

	report := verifier.VerifyEntity(current, events)
	if !report.Valid {
		s.obs.VerificationFailed(ctx, "entity")
		s.logger.WarnContext(ctx, "entity verification failed",
			"entity_type", entityType, "entity_id", entityID,
			"block_integrity", report.BlockIntegrityValid, "snapshot_match", report.SnapshotMatch)
	}
	return report, nil
}
