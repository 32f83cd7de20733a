package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransient(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(eris.New("conflict"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context) error {
		calls++
		return eris.New("constraint violation")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context) error {
		calls++
		return NewTransientError(eris.New("still conflicting"))
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoVal_ReturnsValue(t *testing.T) {
	got, err := DoVal(context.Background(), fastConfig(), func(ctx context.Context) (string, error) {
		return "cluster-1", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cluster-1", got)
}

func TestIsTransient_PgSerializationFailure(t *testing.T) {
	err := &pgconn.PgError{Code: "40001"}
	assert.True(t, IsTransient(err))
	assert.True(t, IsTransient(eris.Wrap(err, "assign cluster")))
}

func TestIsTransient_PgDeadlock(t *testing.T) {
	assert.True(t, IsTransient(&pgconn.PgError{Code: "40P01"}))
}

func TestIsTransient_PermanentPgError(t *testing.T) {
	assert.False(t, IsTransient(&pgconn.PgError{Code: "23505"}))
}

func TestIsTransient_SQLiteBusy(t *testing.T) {
	assert.True(t, IsTransient(eris.New("database is locked (5) (SQLITE_BUSY)")))
}

func TestIsTransient_Nil(t *testing.T) {
	assert.False(t, IsTransient(nil))
}
