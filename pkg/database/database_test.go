package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/config"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/ledger"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/verifier"
)

func TestOpen_LiteMode(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "nested")
	ctx := context.Background()

	db, dialect, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, ledger.DialectSQLite, dialect)
	assert.FileExists(t, filepath.Join(cfg.DataDir, LiteFile))
}

func openLite(t *testing.T) (*sql.DB, *ledger.Chain) {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	ctx := context.Background()

	db, dialect, err := Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	chain := ledger.NewChain(db, dialect)
	require.NoError(t, chain.Init(ctx))
	return db, chain
}

// appendConcurrently runs n appends, each in its own transaction on its own goroutine.
func appendConcurrently(t *testing.T, db *sql.DB, chain *ledger.Chain, n int) {
	t.Helper()
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- ledger.RunInTx(ctx, db, func(tx *sql.Tx) error {
				_, err := chain.Append(ctx, tx, ledger.EventSettingsUpdated, ledger.Document{"writer": i})
				return err
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func assertContiguous(t *testing.T, blocks []ledger.Block) {
	t.Helper()
	for i, b := range blocks {
		assert.Equal(t, int64(i), b.Index)
	}
	report := verifier.VerifyChain(blocks)
	assert.True(t, report.Valid, report.Reason)
}

func TestOpen_LiteModeConcurrentAppends(t *testing.T) {
	db, chain := openLite(t)
	ctx := context.Background()
	_, err := chain.EnsureGenesis(ctx)
	require.NoError(t, err)

	appendConcurrently(t, db, chain, 8)

	blocks, err := chain.Blocks(ctx)
	require.NoError(t, err)
	require.Len(t, blocks, 9)
	assertContiguous(t, blocks)
}

func TestOpen_LiteModeConcurrentAppendsOnEmptyChain(t *testing.T) {
	db, chain := openLite(t)
	ctx := context.Background()

	const writers = 32
	appendConcurrently(t, db, chain, writers)

	blocks, err := chain.Blocks(ctx)
	require.NoError(t, err)
	require.Len(t, blocks, writers)
	assert.Equal(t, ledger.GenesisPreviousHash, blocks[0].PreviousHash)
	assertContiguous(t, blocks)
}

func TestOpen_LiteModeConcurrentGenesis(t *testing.T) {
	_, chain := openLite(t)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := chain.CreateGenesis(ctx)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var created, exists int
	for err := range results {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ledger.ErrGenesisExists):
			exists++
		default:
			t.Errorf("unexpected genesis error: %v", err)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, exists)

	n, err := chain.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// A writer waits for a long-held write lock instead of failing with SQLITE_BUSY.
func TestOpen_LiteModeAppendWaitsForLock(t *testing.T) {
	if testing.Short() {
		t.Skip("holds the write lock for several seconds")
	}
	db, chain := openLite(t)
	ctx := context.Background()

	holder, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- ledger.RunInTx(ctx, db, func(tx *sql.Tx) error {
			_, err := chain.Append(ctx, tx, ledger.EventSettingsUpdated, ledger.Document{"waited": true})
			return err
		})
	}()

	select {
	case err := <-done:
		t.Fatalf("append finished while the write lock was held: %v", err)
	case <-time.After(6 * time.Second):
	}
	require.NoError(t, holder.Commit())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("append did not complete after the lock was released")
	}
	n, err := chain.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLiteDSN_BusyTimeout(t *testing.T) {
	assert.Contains(t, liteDSN("data"), "busy_timeout(600000)")
	assert.Contains(t, liteDSN("data"), "_txlock=immediate")
}
