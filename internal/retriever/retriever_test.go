package retriever

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafidimas/pens-chatbot/internal/embedding"
	"github.com/rafidimas/pens-chatbot/internal/storage"
)

type fakeEmbedder struct {
	task embedding.TaskType
	err  error
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string, task embedding.TaskType) ([]float32, error) {
	f.task = task
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, storage.VectorDimension), nil
}

type fakeStore struct {
	hits     []*storage.ScoredChunk
	err      error
	gotTopK  int
}

func (f *fakeStore) Search(ctx context.Context, vector []float32, topK int) ([]*storage.ScoredChunk, error) {
	f.gotTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	if topK < len(f.hits) {
		return f.hits[:topK], nil
	}
	return f.hits, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func scored(source string, index, page int, text string, distance float64) *storage.ScoredChunk {
	return &storage.ScoredChunk{
		Chunk: &storage.Chunk{
			ID:     storage.PointID(source, index),
			Source: source,
			Index:  index,
			Page:   page,
			Text:   text,
		},
		Distance: distance,
	}
}

func TestRetrieve_EmptyStore(t *testing.T) {
	r := New(&fakeEmbedder{}, &fakeStore{}, quietLogger())

	result, err := r.Retrieve(context.Background(), "Kapan pendaftaran dibuka?", 3)
	require.NoError(t, err, "empty store is a normal, non-error outcome")

	assert.Equal(t, "", result.Context)
	assert.Empty(t, result.Sources)
}

func TestRetrieve_QueryMode(t *testing.T) {
	emb := &fakeEmbedder{}
	r := New(emb, &fakeStore{}, quietLogger())

	_, err := r.Retrieve(context.Background(), "Berapa biaya kuliah?", 3)
	require.NoError(t, err)

	assert.Equal(t, embedding.TaskQuery, emb.task, "queries must embed in query mode, not document mode")
}

func TestRetrieve_FormatsContext(t *testing.T) {
	store := &fakeStore{hits: []*storage.ScoredChunk{
		scored("panduan-pmb.pdf", 0, 12, "Pendaftaran dibuka bulan Juni.", 0.1),
		scored("faq.txt", 3, 0, "Biaya kuliah mengikuti UKT.", 0.25),
	}}
	r := New(&fakeEmbedder{}, store, quietLogger())

	result, err := r.Retrieve(context.Background(), "kapan pendaftaran", 3)
	require.NoError(t, err)

	want := "[panduan-pmb.pdf Hal. 12]\nPendaftaran dibuka bulan Juni." +
		"\n\n---\n\n" +
		"[faq.txt]\nBiaya kuliah mengikuti UKT."
	assert.Equal(t, want, result.Context)
}

func TestRetrieve_ScoresAndOrder(t *testing.T) {
	store := &fakeStore{hits: []*storage.ScoredChunk{
		scored("a.pdf", 0, 0, "pertama", 0.10),
		scored("b.pdf", 0, 0, "kedua", 0.35),
		scored("c.pdf", 0, 0, "ketiga", 0.80),
	}}
	r := New(&fakeEmbedder{}, store, quietLogger())

	result, err := r.Retrieve(context.Background(), "pertanyaan", 3)
	require.NoError(t, err)
	require.Len(t, result.Sources, 3)

	// similarity = 1 - distance, in [0,1] for cosine distances in [0,2]
	assert.InDelta(t, 0.90, result.Sources[0].Score, 1e-9)
	assert.InDelta(t, 0.65, result.Sources[1].Score, 1e-9)
	assert.InDelta(t, 0.20, result.Sources[2].Score, 1e-9)

	// Store order preserved, scores non-increasing
	for i := 1; i < len(result.Sources); i++ {
		assert.LessOrEqual(t, result.Sources[i].Score, result.Sources[i-1].Score)
	}
	assert.Equal(t, "a.pdf", result.Sources[0].Source)
	assert.Equal(t, storage.PointID("a.pdf", 0), result.Sources[0].ID)
}

func TestRetrieve_TopKDefault(t *testing.T) {
	store := &fakeStore{}
	r := New(&fakeEmbedder{}, store, quietLogger())

	_, err := r.Retrieve(context.Background(), "pertanyaan", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, store.gotTopK)

	_, err = r.Retrieve(context.Background(), "pertanyaan", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, store.gotTopK)
}

func TestRetrieve_EmbedError(t *testing.T) {
	wantErr := errors.New("quota exceeded")
	r := New(&fakeEmbedder{err: wantErr}, &fakeStore{}, quietLogger())

	_, err := r.Retrieve(context.Background(), "pertanyaan", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}

func TestRetrieve_StoreError(t *testing.T) {
	wantErr := errors.New("connection refused")
	r := New(&fakeEmbedder{}, &fakeStore{err: wantErr}, quietLogger())

	_, err := r.Retrieve(context.Background(), "pertanyaan", 3)
	require.Error(t, err, "store failures surface to the caller, which degrades the chat turn gracefully")
	assert.ErrorIs(t, err, wantErr)
}

func TestRetrieve_LongQueryTruncatedInLogsOnly(t *testing.T) {
	store := &fakeStore{hits: []*storage.ScoredChunk{
		scored("a.pdf", 0, 0, "jawaban", 0.2),
	}}
	r := New(&fakeEmbedder{}, store, quietLogger())

	long := strings.Repeat("pertanyaan panjang ", 20)
	result, err := r.Retrieve(context.Background(), long, 1)
	require.NoError(t, err)
	assert.Contains(t, result.Context, "jawaban")
}
