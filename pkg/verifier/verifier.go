// Package verifier checks ledger integrity.
//
// Both verifiers are pure: they take blocks and event records already read from
// the store, perform no I/O and take no locks, and return the same report for the
// same input. Integrity failures are returned as report data, never as errors.
package verifier

import (
	"fmt"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/ledger"
)

// Version identifies the verification rules applied.
const Version = "1.0.0"

// Check names, in the order they are evaluated for every block.
const (
	CheckIndexContinuity = "index_continuity"
	CheckGenesisSentinel = "genesis_sentinel"
	CheckBlockHash       = "block_hash"
	CheckHashLink        = "hash_link"
)

var checkOrder = []string{CheckIndexContinuity, CheckGenesisSentinel, CheckBlockHash, CheckHashLink}

// CheckResult is the outcome of one class of check across the whole chain.
type CheckResult struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Reason string `json:"reason,omitempty"`
	// Index is the first offending block, set only on failure.
	Index *int64 `json:"index,omitempty"`
}

// ChainReport is the result of VerifyChain.
type ChainReport struct {
	Valid       bool          `json:"valid"`
	Reason      string        `json:"reason,omitempty"`
	TotalBlocks int           `json:"totalBlocks"`
	LastHash    string        `json:"lastHash,omitempty"`
	Checks      []CheckResult `json:"checks"`
	Version     string        `json:"verifierVersion"`
}

func (r *ChainReport) fail(check string, index int64, reason string) {
	for i := range r.Checks {
		c := &r.Checks[i]
		if c.Name != check || !c.Pass {
			continue
		}
		c.Pass = false
		c.Reason = reason
		idx := index
		c.Index = &idx
	}
	if r.Valid {
		r.Valid = false
		r.Reason = reason
	}
}

// VerifyChain walks blocks in the order given, which must be index order.
// The first failing block decides Reason; Checks records the first failure of each kind.
func VerifyChain(blocks []ledger.Block) *ChainReport {
	report := &ChainReport{
		Valid:       true,
		TotalBlocks: len(blocks),
		Version:     Version,
		Checks:      make([]CheckResult, 0, len(checkOrder)),
	}
	for _, name := range checkOrder {
		report.Checks = append(report.Checks, CheckResult{Name: name, Pass: true})
	}
	if len(blocks) == 0 {
		report.Valid = false
		report.Reason = "chain is empty"
		return report
	}
	report.LastHash = blocks[len(blocks)-1].Hash

	for i := range blocks {
		b := &blocks[i]
		if b.Index != int64(i) {
			report.fail(CheckIndexContinuity, b.Index,
				fmt.Sprintf("index gap at block %d: expected index %d", b.Index, i))
		}
		if i == 0 && b.PreviousHash != ledger.GenesisPreviousHash {
			report.fail(CheckGenesisSentinel, b.Index,
				fmt.Sprintf("genesis previous hash at block %d is %q", b.Index, b.PreviousHash))
		}
		if !b.HashValid() {
			report.fail(CheckBlockHash, b.Index, fmt.Sprintf("hash mismatch at block %d", b.Index))
		}
		if i > 0 && b.PreviousHash != blocks[i-1].Hash {
			report.fail(CheckHashLink, b.Index, fmt.Sprintf("broken link at block %d", b.Index))
		}
	}
	return report
}
