package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/civicdesk/triage-service/internal/config"
)

func TestNewPostgresRequiresDSN(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	assert.Nil(t, pg)
	assert.ErrorIs(t, err, ErrMissingDSN)
}

func TestSlowQueryTracer(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tracer := NewSlowQueryTracer(100*time.Millisecond, zap.New(core))

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tracer.now = func() time.Time { return clock }

	run := func(sql string, took time.Duration, err error) {
		ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: sql})
		clock = clock.Add(took)
		tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: err})
	}

	run("SELECT fast", 10*time.Millisecond, nil)
	run("SELECT missing", 10*time.Millisecond, pgx.ErrNoRows)
	assert.Equal(t, 0, logs.Len())

	run("SELECT slow", 250*time.Millisecond, nil)
	run("UPDATE broken", 5*time.Millisecond, errors.New("syntax error"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "slow query", entries[0].Message)
	assert.Equal(t, "SELECT slow", entries[0].ContextMap()["sql"])
	assert.Equal(t, "query failed", entries[1].Message)
	assert.Equal(t, "UPDATE broken", entries[1].ContextMap()["sql"])
}

func TestSlowQueryTracerWithoutStart(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tracer := NewSlowQueryTracer(time.Millisecond, zap.New(core))
	tracer.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{Err: errors.New("boom")})
	assert.Equal(t, 0, logs.Len())
}

func TestNewRedis(t *testing.T) {
	t.Run("Available", func(t *testing.T) {
		mr := miniredis.RunT(t)
		r := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr(), PoolSize: 4, DialTimeoutMS: 500}, zap.NewNop())
		defer r.Close()

		assert.True(t, r.Available())
		assert.NoError(t, r.Ping(context.Background()))
	})

	t.Run("Unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		core, logs := observer.New(zap.WarnLevel)
		r := NewRedis(context.Background(), config.RedisConfig{Addr: addr, DialTimeoutMS: 200}, zap.New(core))
		defer r.Close()

		assert.False(t, r.Available())
		assert.Equal(t, 1, logs.FilterMessage("unable to reach redis").Len())
	})

	t.Run("NilSafe", func(t *testing.T) {
		var r *Redis
		assert.False(t, r.Available())
		assert.Error(t, r.Ping(context.Background()))
		r.Close()
	})
}

func TestInstallChangeNotify(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE OR REPLACE FUNCTION notify_report_change\(\)`).
		WillReturnResult(pgxmock.NewResult("CREATE FUNCTION", 0))
	require.NoError(t, InstallChangeNotify(context.Background(), mock, "report_changes", zap.NewNop()))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Contains(t, NotifyFunctionSQL("o'brien"), `'o''brien'`)
}
