package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/facesearch/internal/config"
	"github.com/your-org/facesearch/internal/models"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the face_records table. Embedding width depends on the
// extractor, so the column is an unsized vector.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS face_records (
			user_id              TEXT PRIMARY KEY,
			embedding            vector NOT NULL,
			extractor_version    TEXT NOT NULL,
			landmarks            REAL[] NOT NULL DEFAULT '{}',
			quality_score        REAL NOT NULL,
			brightness           REAL NOT NULL DEFAULT 0,
			contrast             REAL NOT NULL DEFAULT 0,
			detection_confidence REAL NOT NULL DEFAULT 0,
			state_moment         TEXT NOT NULL DEFAULT '',
			user_age             TEXT NOT NULL DEFAULT '',
			reference_image_url  TEXT NOT NULL DEFAULT '',
			reference_key        TEXT NOT NULL DEFAULT '',
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS face_records_version_idx ON face_records (extractor_version);
	`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// UpsertFace inserts or replaces the record for rec.UserID. created_at is
// kept on replace.
func (s *PostgresStore) UpsertFace(ctx context.Context, rec *models.FaceRecord) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO face_records (user_id, embedding, extractor_version, landmarks, quality_score, brightness,
			contrast, detection_confidence, state_moment, user_age, reference_image_url, reference_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (user_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			extractor_version = EXCLUDED.extractor_version,
			landmarks = EXCLUDED.landmarks,
			quality_score = EXCLUDED.quality_score,
			brightness = EXCLUDED.brightness,
			contrast = EXCLUDED.contrast,
			detection_confidence = EXCLUDED.detection_confidence,
			state_moment = EXCLUDED.state_moment,
			user_age = EXCLUDED.user_age,
			reference_image_url = EXCLUDED.reference_image_url,
			reference_key = EXCLUDED.reference_key,
			updated_at = NOW()
		 RETURNING created_at, updated_at`,
		rec.UserID, pgvector.NewVector(rec.Embedding), rec.ExtractorVersion, flattenLandmarks(rec.Landmarks),
		rec.QualityScore, rec.Brightness, rec.Contrast, rec.DetectionConfidence,
		rec.StateMoment, rec.UserAge, rec.ReferenceImageURL, rec.ReferenceKey,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return storeErr("upsert face "+rec.UserID, err)
	}
	return nil
}

// GetFace returns nil, nil when the user has no record.
func (s *PostgresStore) GetFace(ctx context.Context, userID string) (*models.FaceRecord, error) {
	var (
		rec       models.FaceRecord
		vec       pgvector.Vector
		landmarks []float32
	)
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, embedding, extractor_version, landmarks, quality_score, brightness, contrast,
			detection_confidence, state_moment, user_age, reference_image_url, reference_key, created_at, updated_at
		 FROM face_records WHERE user_id = $1`, userID,
	).Scan(&rec.UserID, &vec, &rec.ExtractorVersion, &landmarks, &rec.QualityScore, &rec.Brightness,
		&rec.Contrast, &rec.DetectionConfidence, &rec.StateMoment, &rec.UserAge,
		&rec.ReferenceImageURL, &rec.ReferenceKey, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr("get face "+userID, err)
	}
	rec.Embedding = vec.Slice()
	rec.Landmarks = unflattenLandmarks(landmarks)
	return &rec, nil
}

// DeleteFace removes the record and returns it, or ErrNotFound.
func (s *PostgresStore) DeleteFace(ctx context.Context, userID string) (*models.FaceRecord, error) {
	var rec models.FaceRecord
	err := s.pool.QueryRow(ctx,
		`DELETE FROM face_records WHERE user_id = $1 RETURNING user_id, reference_image_url, reference_key`, userID,
	).Scan(&rec.UserID, &rec.ReferenceImageURL, &rec.ReferenceKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeErr("delete face "+userID, err)
	}
	return &rec, nil
}

func (s *PostgresStore) ListAttributes(ctx context.Context) ([]models.FaceAttributes, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, state_moment, user_age FROM face_records ORDER BY updated_at DESC`)
	if err != nil {
		return nil, storeErr("list attributes", err)
	}
	defer rows.Close()

	var out []models.FaceAttributes
	for rows.Next() {
		var a models.FaceAttributes
		if err := rows.Scan(&a.UserID, &a.StateMoment, &a.UserAge); err != nil {
			return nil, storeErr("scan attributes", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list attributes", err)
	}
	return out, nil
}

// NearestFaces preselects same-version records by cosine distance.
func (s *PostgresStore) NearestFaces(ctx context.Context, embedding []float32, version string, minQuality float32, limit int) ([]models.FaceCandidate, error) {
	if limit <= 0 {
		limit = 20
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.pool.Query(ctx, `
		SELECT user_id, embedding, quality_score, state_moment, user_age, reference_image_url,
			embedding <=> $1 AS distance
		FROM face_records
		WHERE extractor_version = $2
		  AND quality_score >= $3
		  AND vector_dims(embedding) = $4
		ORDER BY embedding <=> $1
		LIMIT $5`,
		vec, version, minQuality, len(embedding), limit)
	if err != nil {
		return nil, storeErr("nearest faces", err)
	}
	defer rows.Close()

	var out []models.FaceCandidate
	for rows.Next() {
		var (
			c models.FaceCandidate
			v pgvector.Vector
		)
		if err := rows.Scan(&c.UserID, &v, &c.QualityScore, &c.StateMoment, &c.UserAge, &c.ImageURL, &c.Distance); err != nil {
			return nil, storeErr("scan candidate", err)
		}
		c.Embedding = v.Slice()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("nearest faces", err)
	}
	return out, nil
}

// ListStaleFaces returns records produced by an extractor other than version.
func (s *PostgresStore) ListStaleFaces(ctx context.Context, version string) ([]models.FaceRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, extractor_version, reference_image_url, reference_key
		 FROM face_records WHERE extractor_version <> $1 ORDER BY user_id`, version)
	if err != nil {
		return nil, storeErr("list stale faces", err)
	}
	defer rows.Close()

	var out []models.FaceRecord
	for rows.Next() {
		var rec models.FaceRecord
		if err := rows.Scan(&rec.UserID, &rec.ExtractorVersion, &rec.ReferenceImageURL, &rec.ReferenceKey); err != nil {
			return nil, storeErr("scan stale face", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list stale faces", err)
	}
	return out, nil
}

func flattenLandmarks(lm [5][2]float32) []float32 {
	out := make([]float32, 0, 10)
	for _, p := range lm {
		out = append(out, p[0], p[1])
	}
	return out
}

func unflattenLandmarks(v []float32) [5][2]float32 {
	var lm [5][2]float32
	for i := 0; i+1 < len(v) && i/2 < 5; i += 2 {
		lm[i/2] = [2]float32{v[i], v[i+1]}
	}
	return lm
}

// storeErr marks connection and timeout failures as ErrStoreUnavailable so
// callers can tell an outage from a bad query.
func storeErr(op string, err error) error {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, errors.Join(ErrStoreUnavailable, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
