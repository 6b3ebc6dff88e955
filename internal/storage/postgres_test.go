package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facesearch/internal/models"
)

func TestStoreErr(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"query error", errors.New("syntax error"), false},
		{"deadline", context.DeadlineExceeded, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storeErr("get face u1", tt.err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.unavailable, errors.Is(err, ErrStoreUnavailable))
			assert.Contains(t, err.Error(), "get face u1")
		})
	}
}

func TestLandmarksRoundTrip(t *testing.T) {
	lm := [5][2]float32{{1, 2}, {3, 4}, {5, 6}, {7, 8}, {9, 10}}
	flat := flattenLandmarks(lm)
	assert.Len(t, flat, 10)
	assert.Equal(t, lm, unflattenLandmarks(flat))
	assert.Equal(t, [5][2]float32{}, unflattenLandmarks(nil))
}

// unreachableStore points at a closed port; the pool connects lazily, so
// every query fails at connect time.
func unreachableStore(t *testing.T) *PostgresStore {
	t.Helper()
	cfg, err := pgxpool.ParseConfig("postgres://fs:fs@127.0.0.1:1/fs?sslmode=disable&connect_timeout=1")
	require.NoError(t, err)
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return &PostgresStore{pool: pool}
}

func TestQueriesReportStoreUnavailable(t *testing.T) {
	s := unreachableStore(t)

	tests := []struct {
		name string
		run  func(ctx context.Context) error
	}{
		{"list stale faces", func(ctx context.Context) error {
			_, err := s.ListStaleFaces(ctx, "v2")
			return err
		}},
		{"list attributes", func(ctx context.Context) error {
			_, err := s.ListAttributes(ctx)
			return err
		}},
		{"nearest faces", func(ctx context.Context) error {
			_, err := s.NearestFaces(ctx, []float32{1, 0}, "v2", 0.4, 10)
			return err
		}},
		{"get face", func(ctx context.Context) error {
			_, err := s.GetFace(ctx, "u1")
			return err
		}},
		{"delete face", func(ctx context.Context) error {
			_, err := s.DeleteFace(ctx, "u1")
			return err
		}},
		{"upsert face", func(ctx context.Context) error {
			return s.UpsertFace(ctx, &models.FaceRecord{UserID: "u1", Embedding: []float32{1, 0}})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := tt.run(ctx)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrStoreUnavailable)
		})
	}
}
