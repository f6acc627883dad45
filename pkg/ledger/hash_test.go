package ledger

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash_KeyOrderIndependent(t *testing.T) {
	a := Document{"b": 2, "a": map[string]any{"y": 1, "x": "s"}}
	var b Document
	require.NoError(t, json.Unmarshal([]byte(`{"a":{"x":"s","y":1},"b":2}`), &b))

	h1, err := ComputeHash(3, "2025-01-01T00:00:00.000Z", EventUserLogin, a, "prev", 0)
	require.NoError(t, err)
	h2, err := ComputeHash(3, "2025-01-01T00:00:00.000Z", EventUserLogin, b, "prev", 0)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestComputeHash_NilPayloadIsEmptyObject(t *testing.T) {
	h1, err := ComputeHash(1, "t", EventUserLogin, nil, "p", 0)
	require.NoError(t, err)
	h2, err := ComputeHash(1, "t", EventUserLogin, Document{}, "p", 0)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestComputeHash_EveryFieldCounts(t *testing.T) {
	base, err := ComputeHash(1, "t", EventUserLogin, Document{"k": "v"}, "p", 0)
	require.NoError(t, err)

	variants := map[string][]any{
		"index":     {int64(2), "t", EventUserLogin, Document{"k": "v"}, "p", int64(0)},
		"timestamp": {int64(1), "u", EventUserLogin, Document{"k": "v"}, "p", int64(0)},
		"eventType": {int64(1), "t", EventUserSignup, Document{"k": "v"}, "p", int64(0)},
		"payload":   {int64(1), "t", EventUserLogin, Document{"k": "w"}, "p", int64(0)},
		"previous":  {int64(1), "t", EventUserLogin, Document{"k": "v"}, "q", int64(0)},
		"nonce":     {int64(1), "t", EventUserLogin, Document{"k": "v"}, "p", int64(1)},
	}
	for name, f := range variants {
		h, err := ComputeHash(f[0].(int64), f[1].(string), f[2].(EventType), f[3].(Document), f[4].(string), f[5].(int64))
		require.NoError(t, err)
		assert.NotEqual(t, base, h, name)
	}
}

func TestComputeHash_DelimiterNotAmbiguous(t *testing.T) {
	// String fields are quoted before joining, so moving a delimiter between
	// adjacent fields cannot produce the same digest.
	h1, err := ComputeHash(1, "a|b", EventUserLogin, nil, "c", 0)
	require.NoError(t, err)
	h2, err := ComputeHash(1, "a", EventType("b|"+string(EventUserLogin)), nil, "c", 0)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestComputeHash_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("hash is deterministic", prop.ForAll(
		func(index int64, ts, prev string, keys []string) bool {
			doc := Document{}
			for i, k := range keys {
				doc[k] = i
			}
			h1, err1 := ComputeHash(index, ts, EventSettingsUpdated, doc, prev, 0)
			h2, err2 := ComputeHash(index, ts, EventSettingsUpdated, doc.Clone(), prev, 0)
			return err1 == nil && err2 == nil && h1 == h2
		},
		gen.Int64Range(0, 1<<40),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("changing the previous hash changes the digest", prop.ForAll(
		func(index int64, prev string) bool {
			h1, err1 := ComputeHash(index, "t", EventUserLogin, nil, prev, 0)
			h2, err2 := ComputeHash(index, "t", EventUserLogin, nil, prev+"x", 0)
			return err1 == nil && err2 == nil && h1 != h2
		},
		gen.Int64Range(0, 1<<40),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestBlock_HashValidDetectsEdits(t *testing.T) {
	g, err := GenesisBlock()
	require.NoError(t, err)
	require.True(t, g.HashValid())

	g.Payload = g.Payload.Clone()
	g.Payload["version"] = "2"
	assert.False(t, g.HashValid())
}

func TestDocumentString(t *testing.T) {
	d := Document{"a": "x", "b": "", "c": 3}
	s, ok := d.String("a")
	assert.True(t, ok)
	assert.Equal(t, "x", s)
	_, ok = d.String("b")
	assert.False(t, ok)
	_, ok = d.String("c")
	assert.False(t, ok)
	_, ok = d.String("missing")
	assert.False(t, ok)
}
