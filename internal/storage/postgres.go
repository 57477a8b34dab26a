package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/photostack/internal/config"
	"github.com/your-org/photostack/internal/models"
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

// EnsureSchema creates the vector extension and images table if missing.
// dim is the embedding dimension of the configured embedder.
func (s *PostgresStore) EnsureSchema(ctx context.Context, dim int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS images (
			id UUID PRIMARY KEY,
			filename TEXT NOT NULL,
			raw_key TEXT NOT NULL,
			ocr_variant_key TEXT NOT NULL DEFAULT '',
			vis_variant_key TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL UNIQUE,
			ocr_text TEXT,
			ocr_confidence DOUBLE PRECISION,
			captured_at TIMESTAMPTZ,
			device_make TEXT,
			device_model TEXT,
			orientation INT,
			category TEXT,
			tags TEXT[] NOT NULL DEFAULT '{}',
			tag_confidence DOUBLE PRECISION,
			embedding vector(%d),
			embedded BOOLEAN NOT NULL DEFAULT FALSE,
			stage_preprocess TEXT NOT NULL DEFAULT 'skipped',
			stage_ocr TEXT NOT NULL DEFAULT 'skipped',
			stage_autotag TEXT NOT NULL DEFAULT 'skipped',
			stage_embed TEXT NOT NULL DEFAULT 'skipped',
			ingested_at TIMESTAMPTZ NOT NULL
		)`, dim),
		`CREATE INDEX IF NOT EXISTS idx_images_ingested_at ON images (ingested_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// UpsertRecord commits a record keyed by its content-derived ID. The same ID
// replaces the previous payload; it never duplicates, which makes concurrent
// ingestion of identical content safe. A nil embedding leaves any stored
// vector and its embedded flag in place, so partial backfills don't wipe
// search state.
func (s *PostgresStore) UpsertRecord(ctx context.Context, rec *models.ImageRecord) error {
	var vec *pgvector.Vector
	if len(rec.Embedding) > 0 {
		v := pgvector.NewVector(rec.Embedding)
		vec = &v
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO images (id, filename, raw_key, ocr_variant_key, vis_variant_key, content_hash,
			ocr_text, ocr_confidence, captured_at, device_make, device_model, orientation,
			category, tags, tag_confidence, embedding, embedded,
			stage_preprocess, stage_ocr, stage_autotag, stage_embed, ingested_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		 ON CONFLICT (id) DO UPDATE SET
			filename = EXCLUDED.filename,
			raw_key = EXCLUDED.raw_key,
			ocr_variant_key = EXCLUDED.ocr_variant_key,
			vis_variant_key = EXCLUDED.vis_variant_key,
			ocr_text = EXCLUDED.ocr_text,
			ocr_confidence = EXCLUDED.ocr_confidence,
			captured_at = EXCLUDED.captured_at,
			device_make = EXCLUDED.device_make,
			device_model = EXCLUDED.device_model,
			orientation = EXCLUDED.orientation,
			category = EXCLUDED.category,
			tags = EXCLUDED.tags,
			tag_confidence = EXCLUDED.tag_confidence,
			embedding = COALESCE(EXCLUDED.embedding, images.embedding),
			embedded = CASE WHEN EXCLUDED.embedding IS NULL
				THEN images.embedded AND EXCLUDED.embedded
				ELSE EXCLUDED.embedded END,
			stage_preprocess = EXCLUDED.stage_preprocess,
			stage_ocr = EXCLUDED.stage_ocr,
			stage_autotag = EXCLUDED.stage_autotag,
			stage_embed = EXCLUDED.stage_embed,
			ingested_at = EXCLUDED.ingested_at`,
		rec.ID, rec.Filename, rec.RawKey, rec.OCRVariantKey, rec.VisVariantKey, rec.ContentHash,
		rec.OCRText, rec.OCRConfidence, rec.CapturedAt, rec.DeviceMake, rec.DeviceModel, rec.Orientation,
		categoryArg(rec.Category), tagsArg(rec.Tags), rec.TagConfidence, vec, rec.Embedded,
		rec.Stages.Preprocess, rec.Stages.OCR, rec.Stages.AutoTag, rec.Stages.Embed, rec.IngestedAt)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// GetRecord returns the record with the given ID, or nil if absent.
func (s *PostgresStore) GetRecord(ctx context.Context, id uuid.UUID) (*models.ImageRecord, error) {
	rec := &models.ImageRecord{}
	var category *string
	var vec *pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT id, filename, raw_key, ocr_variant_key, vis_variant_key, content_hash,
			ocr_text, ocr_confidence, captured_at, device_make, device_model, orientation,
			category, tags, tag_confidence, embedding, embedded,
			stage_preprocess, stage_ocr, stage_autotag, stage_embed, ingested_at
		 FROM images WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.Filename, &rec.RawKey, &rec.OCRVariantKey, &rec.VisVariantKey, &rec.ContentHash,
		&rec.OCRText, &rec.OCRConfidence, &rec.CapturedAt, &rec.DeviceMake, &rec.DeviceModel, &rec.Orientation,
		&category, &rec.Tags, &rec.TagConfidence, &vec, &rec.Embedded,
		&rec.Stages.Preprocess, &rec.Stages.OCR, &rec.Stages.AutoTag, &rec.Stages.Embed, &rec.IngestedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	if category != nil {
		c := models.Category(*category)
		rec.Category = &c
	}
	if vec != nil {
		rec.Embedding = vec.Slice()
	}
	return rec, nil
}

// CountRecords returns the total number of stored records.
func (s *PostgresStore) CountRecords(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM images`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// SearchFilter is the compiled predicate form consumed by SearchByVector.
// All time bounds are absolute; tag terms are lowercased and substrings are
// already LIKE-escaped by the filter compiler.
type SearchFilter struct {
	IngestedAfter  *time.Time
	IngestedBefore *time.Time
	TagLike        string
	TagsAll        []string
	TextLike       string
	ConfidenceMin  *float64
	DeviceLike     string
	Category       string
}

// buildFilterSQL renders a SearchFilter as AND-ed conditions starting at the
// given placeholder index.
func buildFilterSQL(f *SearchFilter, argIdx int) ([]string, []interface{}) {
	var conds []string
	var args []interface{}
	if f == nil {
		return conds, args
	}

	if f.IngestedAfter != nil {
		conds = append(conds, fmt.Sprintf("ingested_at >= $%d", argIdx))
		args = append(args, *f.IngestedAfter)
		argIdx++
	}
	if f.IngestedBefore != nil {
		conds = append(conds, fmt.Sprintf("ingested_at <= $%d", argIdx))
		args = append(args, *f.IngestedBefore)
		argIdx++
	}
	if f.TagLike != "" {
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM unnest(tags) AS t WHERE t ILIKE '%%' || $%d || '%%')", argIdx))
		args = append(args, f.TagLike)
		argIdx++
	}
	if len(f.TagsAll) > 0 {
		conds = append(conds, fmt.Sprintf("tags @> $%d", argIdx))
		args = append(args, f.TagsAll)
		argIdx++
	}
	if f.TextLike != "" {
		conds = append(conds, fmt.Sprintf("ocr_text ILIKE '%%' || $%d || '%%'", argIdx))
		args = append(args, f.TextLike)
		argIdx++
	}
	if f.ConfidenceMin != nil {
		conds = append(conds, fmt.Sprintf("ocr_confidence >= $%d", argIdx))
		args = append(args, *f.ConfidenceMin)
		argIdx++
	}
	if f.DeviceLike != "" {
		conds = append(conds, fmt.Sprintf(
			"(device_model ILIKE '%%' || $%d || '%%' OR device_make ILIKE '%%' || $%d || '%%')",
			argIdx, argIdx))
		args = append(args, f.DeviceLike)
		argIdx++
	}
	if f.Category != "" {
		conds = append(conds, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, f.Category)
		argIdx++
	}
	return conds, args
}

// SearchByVector runs a cosine nearest-neighbor search restricted by the
// compiled filter. Only embedded records are candidates. Results come back in
// descending similarity, ties broken by most recent ingestion. An empty
// corpus yields an empty slice, not an error.
func (s *PostgresStore) SearchByVector(ctx context.Context, embedding []float32, filter *SearchFilter, limit int) ([]models.MatchResult, error) {
	vec := pgvector.NewVector(embedding)

	where := []string{"embedded"}
	args := []interface{}{vec}

	conds, condArgs := buildFilterSQL(filter, 2)
	where = append(where, conds...)
	args = append(args, condArgs...)

	query := fmt.Sprintf(
		`SELECT id, filename, raw_key, ocr_variant_key, vis_variant_key, ocr_text, ocr_confidence,
			device_make, device_model, category, tags, ingested_at,
			1 - (embedding <=> $1) AS score
		 FROM images
		 WHERE %s
		 ORDER BY embedding <=> $1, ingested_at DESC
		 LIMIT $%d`,
		strings.Join(where, " AND "), len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search by vector: %w", err)
	}
	defer rows.Close()

	matches := make([]models.MatchResult, 0, limit)
	for rows.Next() {
		var m models.MatchResult
		var id uuid.UUID
		var category *string
		var ingestedAt time.Time
		if err := rows.Scan(&id, &m.Filename, &m.RawKey, &m.OCRVariantKey, &m.VisVariantKey, &m.OCRText, &m.OCRConfidence,
			&m.DeviceMake, &m.DeviceModel, &category, &m.Tags, &ingestedAt, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.ID = id.String()
		m.IngestedAt = &ingestedAt
		if category != nil {
			c := models.Category(*category)
			m.Category = &c
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func categoryArg(c *models.Category) *string {
	if c == nil {
		return nil
	}
	s := string(*c)
	return &s
}

func tagsArg(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
