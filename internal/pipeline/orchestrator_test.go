package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/photostack/internal/errs"
	"github.com/your-org/photostack/internal/models"
	"github.com/your-org/photostack/internal/oracle"
)

type memStore struct {
	recs    map[uuid.UUID]*models.ImageRecord
	upserts int
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[uuid.UUID]*models.ImageRecord)}
}

func (m *memStore) GetRecord(ctx context.Context, id uuid.UUID) (*models.ImageRecord, error) {
	return m.recs[id], nil
}

func (m *memStore) UpsertRecord(ctx context.Context, rec *models.ImageRecord) error {
	m.upserts++
	m.recs[rec.ID] = rec
	return nil
}

type memBlobs struct {
	objects map[string][]byte
	putErr  error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (m *memBlobs) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[key] = data
	return nil
}

func (m *memBlobs) GetObject(ctx context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

type fakeOCR struct {
	res   *oracle.OCRResult
	err   error
	calls int
}

func (f *fakeOCR) Extract(ctx context.Context, filename string, image []byte) (*oracle.OCRResult, error) {
	f.calls++
	return f.res, f.err
}

type fakeTagger struct {
	res *oracle.TagResult
	err error
}

func (f *fakeTagger) AutoTag(ctx context.Context, image []byte, ocrText string) (*oracle.TagResult, error) {
	return f.res, f.err
}

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedImageAndText(ctx context.Context, image []byte, text string) ([]float32, error) {
	f.calls++
	return f.vec, f.err
}

func allStages() Options {
	return Options{Preprocess: false, OCR: true, AutoTag: true, Embed: true}
}

func happyTagger() *fakeTagger {
	return &fakeTagger{res: &oracle.TagResult{
		Category:   models.CategoryReceipt,
		Tags:       []string{"grocery", "store"},
		Confidence: 0.9,
		Parsed:     true,
	}}
}

func newTestOrchestrator(store *memStore, blobs *memBlobs, ocr OCROracle, tagger Tagger, emb Embedder) *Orchestrator {
	return NewOrchestrator(store, blobs, NewPreprocessor(1600), ocr, tagger, emb, nil, nil)
}

func TestIngest_HappyPath(t *testing.T) {
	store := newMemStore()
	blobs := newMemBlobs()
	ocr := &fakeOCR{res: &oracle.OCRResult{Text: "TOTAL 42.17", Confidence: 0.95}}
	emb := &fakeEmbedder{vec: []float32{1, 0, 0}}

	o := newTestOrchestrator(store, blobs, ocr, happyTagger(), emb)

	rec, deduped, err := o.Ingest(context.Background(), "receipt.jpg", []byte("image-bytes"), allStages())
	require.NoError(t, err)
	assert.False(t, deduped)

	assert.Equal(t, models.RecordID(models.ContentHash([]byte("image-bytes"))), rec.ID)
	require.NotNil(t, rec.OCRText)
	assert.Equal(t, "TOTAL 42.17", *rec.OCRText)
	require.NotNil(t, rec.Category)
	assert.Equal(t, models.CategoryReceipt, *rec.Category)
	assert.Equal(t, []string{"grocery", "store"}, rec.Tags)
	assert.True(t, rec.Embedded)
	assert.Equal(t, models.StageOK, rec.Stages.OCR)
	assert.Equal(t, models.StageOK, rec.Stages.AutoTag)
	assert.Equal(t, models.StageOK, rec.Stages.Embed)
	assert.Equal(t, models.StageSkipped, rec.Stages.Preprocess)

	assert.Equal(t, 1, store.upserts)
	assert.Contains(t, blobs.objects, rec.RawKey)
}

func TestIngest_DuplicateContentShortCircuits(t *testing.T) {
	store := newMemStore()
	blobs := newMemBlobs()
	ocr := &fakeOCR{res: &oracle.OCRResult{Text: "hello"}}
	emb := &fakeEmbedder{vec: []float32{1}}

	o := newTestOrchestrator(store, blobs, ocr, happyTagger(), emb)

	raw := []byte("same-image")
	first, deduped, err := o.Ingest(context.Background(), "a.jpg", raw, allStages())
	require.NoError(t, err)
	require.False(t, deduped)

	second, deduped, err := o.Ingest(context.Background(), "copy-of-a.jpg", raw, allStages())
	require.NoError(t, err)
	assert.True(t, deduped)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.upserts, "dedup must not write again")
	assert.Equal(t, 1, ocr.calls, "dedup must not re-run oracles")
}

func TestIngest_OCRFailureDegrades(t *testing.T) {
	store := newMemStore()
	ocr := &fakeOCR{err: errors.New("timeout")}
	emb := &fakeEmbedder{vec: []float32{1}}

	o := newTestOrchestrator(store, newMemBlobs(), ocr, happyTagger(), emb)

	rec, _, err := o.Ingest(context.Background(), "a.jpg", []byte("img"), allStages())
	require.NoError(t, err, "a dead OCR service must not fail ingestion")
	assert.Equal(t, models.StageFailed, rec.Stages.OCR)
	assert.Nil(t, rec.OCRText)
	// The rest of the pipeline still ran.
	assert.Equal(t, models.StageOK, rec.Stages.AutoTag)
	assert.True(t, rec.Embedded)
}

func TestIngest_TaggerOracleFailure(t *testing.T) {
	store := newMemStore()
	tagger := &fakeTagger{err: errors.New("connection refused")}
	emb := &fakeEmbedder{vec: []float32{1}}

	o := newTestOrchestrator(store, newMemBlobs(), &fakeOCR{res: &oracle.OCRResult{}}, tagger, emb)

	rec, _, err := o.Ingest(context.Background(), "a.jpg", []byte("img"), allStages())
	require.NoError(t, err)
	assert.Equal(t, models.StageFailed, rec.Stages.AutoTag)
	assert.Nil(t, rec.Category)
}

func TestIngest_MalformedTagOutputFallsBackToOther(t *testing.T) {
	store := newMemStore()
	tagger := &fakeTagger{res: &oracle.TagResult{Category: models.CategoryOther, Tags: []string{}}}
	emb := &fakeEmbedder{vec: []float32{1}}

	o := newTestOrchestrator(store, newMemBlobs(), &fakeOCR{res: &oracle.OCRResult{}}, tagger, emb)

	rec, _, err := o.Ingest(context.Background(), "a.jpg", []byte("img"), allStages())
	require.NoError(t, err)
	require.NotNil(t, rec.Category)
	assert.Equal(t, models.CategoryOther, *rec.Category)
	assert.Nil(t, rec.TagConfidence)
}

func TestIngest_EmbedFailureCommitsUnembedded(t *testing.T) {
	store := newMemStore()
	emb := &fakeEmbedder{err: errors.New("embedder down")}

	o := newTestOrchestrator(store, newMemBlobs(), &fakeOCR{res: &oracle.OCRResult{}}, happyTagger(), emb)

	rec, _, err := o.Ingest(context.Background(), "a.jpg", []byte("img"), allStages())
	require.NoError(t, err)
	assert.False(t, rec.Embedded)
	assert.Nil(t, rec.Embedding)
	assert.Equal(t, models.StageFailed, rec.Stages.Embed)
	assert.Equal(t, 1, store.upserts)
}

func TestIngest_RawStorageFailureIsFatal(t *testing.T) {
	store := newMemStore()
	blobs := newMemBlobs()
	blobs.putErr = errors.New("minio down")

	o := newTestOrchestrator(store, blobs, &fakeOCR{}, happyTagger(), &fakeEmbedder{vec: []float32{1}})

	_, _, err := o.Ingest(context.Background(), "a.jpg", []byte("img"), allStages())
	require.Error(t, err)
	assert.Equal(t, 0, store.upserts, "nothing may be committed without the original")
}

func TestIngest_AllStagesDisabled(t *testing.T) {
	store := newMemStore()
	ocr := &fakeOCR{res: &oracle.OCRResult{Text: "hi"}}

	o := newTestOrchestrator(store, newMemBlobs(), ocr, happyTagger(), &fakeEmbedder{vec: []float32{1}})

	rec, _, err := o.Ingest(context.Background(), "a.jpg", []byte("img"), Options{})
	require.NoError(t, err)
	assert.Equal(t, models.StageSkipped, rec.Stages.OCR)
	assert.Equal(t, models.StageSkipped, rec.Stages.AutoTag)
	assert.Equal(t, models.StageSkipped, rec.Stages.Embed)
	assert.Equal(t, 0, ocr.calls)
	assert.False(t, rec.Embedded)
	assert.Equal(t, 1, store.upserts, "a record still commits with every stage off")
}

func TestIngest_EmptyPayloadRejected(t *testing.T) {
	o := newTestOrchestrator(newMemStore(), newMemBlobs(), &fakeOCR{}, happyTagger(), &fakeEmbedder{})

	_, _, err := o.Ingest(context.Background(), "a.jpg", nil, allStages())
	assert.True(t, errs.IsValidation(err))
}

func TestBackfill_UnknownRecord(t *testing.T) {
	o := newTestOrchestrator(newMemStore(), newMemBlobs(), &fakeOCR{}, happyTagger(), &fakeEmbedder{})

	_, err := o.Backfill(context.Background(), uuid.New(), Options{Embed: true})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestBackfill_ReEmbedPreservesOtherFields(t *testing.T) {
	store := newMemStore()
	blobs := newMemBlobs()
	emb := &fakeEmbedder{err: errors.New("down")}
	ocr := &fakeOCR{res: &oracle.OCRResult{Text: "RECEIPT", Confidence: 0.9}}

	o := newTestOrchestrator(store, blobs, ocr, happyTagger(), emb)

	rec, _, err := o.Ingest(context.Background(), "a.jpg", []byte("img"), allStages())
	require.NoError(t, err)
	require.False(t, rec.Embedded)

	// Embedder recovers; re-run just that stage.
	emb.err = nil
	emb.vec = []float32{0.5, 0.5}

	updated, err := o.Backfill(context.Background(), rec.ID, Options{Embed: true})
	require.NoError(t, err)
	assert.True(t, updated.Embedded)
	assert.Equal(t, models.StageOK, updated.Stages.Embed)
	require.NotNil(t, updated.OCRText)
	assert.Equal(t, "RECEIPT", *updated.OCRText)
	assert.Equal(t, 1, ocr.calls, "disabled stages must not re-run")
	assert.Equal(t, 2, store.upserts)
}

func TestBackfill_PartialRunKeepsEmbedding(t *testing.T) {
	store := newMemStore()
	blobs := newMemBlobs()
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	ocr := &fakeOCR{res: &oracle.OCRResult{Text: "NOTES", Confidence: 0.8}}

	o := newTestOrchestrator(store, blobs, ocr, happyTagger(), emb)

	rec, _, err := o.Ingest(context.Background(), "a.jpg", []byte("img"), allStages())
	require.NoError(t, err)
	require.True(t, rec.Embedded)
	require.Equal(t, []float32{1, 0}, rec.Embedding)

	// Re-run tagging only; the stored vector must survive the write-back.
	updated, err := o.Backfill(context.Background(), rec.ID, Options{AutoTag: true})
	require.NoError(t, err)
	assert.True(t, updated.Embedded)
	assert.Equal(t, []float32{1, 0}, updated.Embedding)
	assert.Equal(t, 1, emb.calls, "a tag-only backfill must not re-embed")

	stored, err := store.GetRecord(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.True(t, stored.Embedded)
	assert.Equal(t, []float32{1, 0}, stored.Embedding, "committed record keeps its searchable vector")
}
