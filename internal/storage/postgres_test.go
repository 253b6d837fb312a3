package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBatchResults struct {
	pgx.BatchResults
	failAt int
	execs  int
	closed bool
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	r.execs++
	if r.execs == r.failAt {
		return pgconn.CommandTag{}, errors.New("check constraint violated")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeBatchResults) Close() error {
	r.closed = true
	return nil
}

type fakeTx struct {
	pgx.Tx
	results    *fakeBatchResults
	queued     int
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	tx.queued = b.Len()
	return tx.results
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if !tx.committed {
		tx.rolledBack = true
	}
	return nil
}

type fakeBeginner struct {
	tx *fakeTx
}

func (b fakeBeginner) Begin(context.Context) (pgx.Tx, error) {
	return b.tx, nil
}

func TestUpsertBatchCommitsAllRows(t *testing.T) {
	tx := &fakeTx{results: &fakeBatchResults{}}
	obs := series("EUR", 1.1, 1.2, 1.3)

	n, err := upsertBatch(context.Background(), fakeBeginner{tx: tx}, obs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, tx.queued)
	assert.True(t, tx.results.closed)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
}

func TestUpsertBatchFailureStoresNothing(t *testing.T) {
	tx := &fakeTx{results: &fakeBatchResults{failAt: 2}}
	obs := series("EUR", 1.1, 1.2, 1.3)

	n, err := upsertBatch(context.Background(), fakeBeginner{tx: tx}, obs)
	assert.ErrorIs(t, err, ErrDataSource)
	assert.Zero(t, n)
	assert.True(t, tx.results.closed)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}
