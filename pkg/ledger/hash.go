package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/canonicalize"
)

// TimestampLayout is the ISO-8601 form stamped on blocks (UTC, millisecond precision).
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// hashFieldDelimiter joins the canonical tuple elements. Field order is positional.
const hashFieldDelimiter = "|"

// Timestamp formats t the way the appender stamps blocks.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ComputeHash digests the ordered tuple (index, timestamp, eventType, payload, previousHash, nonce).
// Every element is canonically serialized on its own and the results are joined with a fixed
// delimiter, so the tuple is never re-serialized as an object.
func ComputeHash(index int64, timestamp string, eventType EventType, payload Document, previousHash string, nonce int64) (string, error) {
	if payload == nil {
		payload = Document{}
	}
	fields := []any{index, timestamp, string(eventType), payload, previousHash, nonce}
	parts := make([]string, len(fields))
	for i, f := range fields {
		s, err := canonicalize.JCSString(f)
		if err != nil {
			return "", fmt.Errorf("ledger: canonicalize field %d: %w", i, err)
		}
		parts[i] = s
	}
	return canonicalize.HashString(strings.Join(parts, hashFieldDelimiter)), nil
}

// ComputeHash recomputes the block hash from the block's own fields.
func (b *Block) ComputeHash() (string, error) {
	return ComputeHash(b.Index, b.Timestamp, b.EventType, b.Payload, b.PreviousHash, b.Nonce)
}

// HashValid reports whether the stored hash matches a fresh recomputation.
func (b *Block) HashValid() bool {
	h, err := b.ComputeHash()
	return err == nil && h == b.Hash
}

// canonicalPayload returns the canonical text of payload and the document decoded back
// from it, so a freshly appended block carries exactly what a later read returns.
func canonicalPayload(payload Document) (Document, string, error) {
	if payload == nil {
		payload = Document{}
	}
	text, err := canonicalize.JCSString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("ledger: canonicalize payload: %w", err)
	}
	doc, err := decodeDocument(text)
	if err != nil {
		return nil, "", err
	}
	return doc, text, nil
}

func decodeDocument(text string) (Document, error) {
	doc := Document{}
	if text == "" {
		return doc, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("ledger: corrupt payload: %w", err)
	}
	return doc, nil
}
