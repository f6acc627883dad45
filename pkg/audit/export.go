package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/artifacts"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/canonicalize"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/ledger"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/verifier"
)

// BundleVersion is the export format written by Export.
const BundleVersion = "1.0.0"

// supportedBundles is the range of formats VerifyBundle accepts.
const supportedBundles = "^1.0.0"

var (
	ErrEmptyChain         = errors.New("audit: nothing to export, chain is empty")
	ErrUnsupportedBundle  = errors.New("audit: unsupported bundle version")
	ErrBundleChecksum     = errors.New("audit: bundle checksum mismatch")
	ErrBundleInconsistent = errors.New("audit: bundle header does not match its blocks")
)

// Bundle is a self-contained copy of the chain that can be verified offline.
type Bundle struct {
	BundleID    string                `json:"bundleId"`
	Version     string                `json:"version"`
	CreatedAt   time.Time             `json:"createdAt"`
	TotalBlocks int                   `json:"totalBlocks"`
	ChainHead   string                `json:"chainHead"`
	Blocks      []ledger.Block        `json:"blocks"`
	Report      *verifier.ChainReport `json:"report"`
	// Checksum is the canonical hash of Blocks.
	Checksum string `json:"checksum"`
}

// Export snapshots the chain into a bundle, including the verification report at export time.
func (s *Service) Export(ctx context.Context) (*Bundle, error) {
	ctx, finish := s.obs.TrackOperation(ctx, "ledger.export")
	blocks, err := s.chain.Blocks(ctx)
	finish(err)
	if err != nil {
		return nil, fmt.Errorf("audit: read chain: %w", err)
	}
	b, err := NewBundle(blocks, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "chain exported", "bundle_id", b.BundleID, "blocks", b.TotalBlocks, "valid", b.Report.Valid)
	return b, nil
}

// NewBundle builds a bundle over blocks.
func NewBundle(blocks []ledger.Block, createdAt time.Time) (*Bundle, error) {
	if len(blocks) == 0 {
		return nil, ErrEmptyChain
	}
	sum, err := canonicalize.CanonicalHash(blocks)
	if err != nil {
		return nil, fmt.Errorf("audit: checksum bundle: %w", err)
	}
	return &Bundle{
		BundleID:    uuid.NewString(),
		Version:     BundleVersion,
		CreatedAt:   createdAt,
		TotalBlocks: len(blocks),
		ChainHead:   blocks[len(blocks)-1].Hash,
		Blocks:      blocks,
		Report:      verifier.VerifyChain(blocks),
		Checksum:    sum,
	}, nil
}

// VerifyBundle checks the bundle envelope and re-verifies the chain it carries.
// Envelope problems are errors; chain integrity failures are reported in the returned report.
func VerifyBundle(b *Bundle) (*verifier.ChainReport, error) {
	v, err := semver.NewVersion(b.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBundle, b.Version)
	}
	constraint, err := semver.NewConstraint(supportedBundles)
	if err != nil {
		return nil, err
	}
	if !constraint.Check(v) {
		return nil, fmt.Errorf("%w: %s not in %s", ErrUnsupportedBundle, v, supportedBundles)
	}

	sum, err := canonicalize.CanonicalHash(b.Blocks)
	if err != nil {
		return nil, fmt.Errorf("audit: checksum bundle: %w", err)
	}
	if sum != b.Checksum {
		return nil, ErrBundleChecksum
	}
	if b.TotalBlocks != len(b.Blocks) {
		return nil, fmt.Errorf("%w: header says %d blocks, found %d", ErrBundleInconsistent, b.TotalBlocks, len(b.Blocks))
	}
	if n := len(b.Blocks); n > 0 && b.ChainHead != b.Blocks[n-1].Hash {
		return nil, fmt.Errorf("%w: chain head", ErrBundleInconsistent)
	}
	return verifier.VerifyChain(b.Blocks), nil
}

// Marshal encodes the bundle as indented JSON.
func (b *Bundle) Marshal() ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

// ParseBundle decodes a bundle, keeping payload numbers exact.
func ParseBundle(data []byte) (*Bundle, error) {
	var b Bundle
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("audit: parse bundle: %w", err)
	}
	return &b, nil
}

// Archive stores the encoded bundle and returns its content reference.
func Archive(ctx context.Context, store artifacts.Store, b *Bundle) (string, error) {
	data, err := b.Marshal()
	if err != nil {
		return "", fmt.Errorf("audit: encode bundle: %w", err)
	}
	return store.Store(ctx, data)
}

// LoadBundle fetches and decodes an archived bundle.
func LoadBundle(ctx context.Context, store artifacts.Store, ref string) (*Bundle, error) {
	data, err := store.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return ParseBundle(data)
}
