package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Ledger metric names.
const (
	MetricBlocksAppended      = "ledger.blocks.appended"
	MetricVerificationsFailed = "ledger.verifications.failed"
)

// Ledger semantic attributes.
var (
	AttrOperation    = attribute.Key("ledger.operation")
	AttrEventType    = attribute.Key("ledger.event_type")
	AttrBlockIndex   = attribute.Key("ledger.block.index")
	AttrEntityType   = attribute.Key("ledger.entity.type")
	AttrEntityID     = attribute.Key("ledger.entity.id")
	AttrVerification = attribute.Key("ledger.verification")
)

// EntityOperation creates attributes for an operation on one ledgered entity.
func EntityOperation(entityType, entityID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEntityType.String(entityType),
		AttrEntityID.String(entityID),
	}
}

// BlockAppended counts one appended block.
func (p *Provider) BlockAppended(ctx context.Context, eventType string) {
	if p.blocksAppended != nil {
		p.blocksAppended.Add(ctx, 1, metric.WithAttributes(AttrEventType.String(eventType)))
	}
}

// VerificationFailed counts one failed verification of the given kind ("chain" or "entity").
func (p *Provider) VerificationFailed(ctx context.Context, kind string) {
	if p.verificationsFailed != nil {
		p.verificationsFailed.Add(ctx, 1, metric.WithAttributes(AttrVerification.String(kind)))
	}
}
