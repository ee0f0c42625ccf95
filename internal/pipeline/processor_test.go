package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"crm-agent-go/internal/model"
	"crm-agent-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct{ content string }

func (f fakeStore) GetObject(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.content)), nil
}
func (fakeStore) PresignedURL(context.Context, string) (string, error) { return "", nil }
func (fakeStore) PutObject(context.Context, string, io.Reader, int64) error { return nil }
func (fakeStore) Bucket() string                                      { return "knowledge" }

type fakeExtractor struct{ text string }

func (f fakeExtractor) ExtractText(_ context.Context, r io.Reader, _ string) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	return f.text, nil
}

type fakeEmbedder struct{ err error }

func (f fakeEmbedder) CreateEmbedding(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}
func (fakeEmbedder) ModelVersion() string { return "text-embedding-test" }

type fakeIndexer struct {
	docs    map[string]model.EsDocument
	deleted []string
}

func (f *fakeIndexer) Index(_ context.Context, id string, doc any) error {
	if f.docs == nil {
		f.docs = make(map[string]model.EsDocument)
	}
	f.docs[id] = doc.(model.EsDocument)
	return nil
}

func (f *fakeIndexer) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.docs, id)
	return nil
}

type fakeChunkRepo struct {
	rows map[string][]*model.KnowledgeChunk
}

func (f *fakeChunkRepo) BatchCreate(_ context.Context, chunks []*model.KnowledgeChunk) error {
	for _, c := range chunks {
		f.rows[c.DocumentID] = append(f.rows[c.DocumentID], c)
	}
	return nil
}

func (f *fakeChunkRepo) FindByDocumentID(_ context.Context, id string) ([]*model.KnowledgeChunk, error) {
	return f.rows[id], nil
}

func (f *fakeChunkRepo) DeleteByDocumentID(_ context.Context, id string) error {
	delete(f.rows, id)
	return nil
}

func TestSplitText(t *testing.T) {
	chunks := splitText(strings.Repeat("a", 2500), 1000, 100)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	assert.Len(t, chunks[2], 700)

	assert.Equal(t, []string{"short"}, splitText("short", 1000, 100))
	assert.Nil(t, splitText("", 1000, 100))

	// 按字符而不是字节切分
	zh := splitText(strings.Repeat("保", 15), 10, 5)
	require.Len(t, zh, 2)
	assert.Equal(t, strings.Repeat("保", 10), zh[0])
}

func TestProcess_IndexesAndRecordsChunks(t *testing.T) {
	indexer := &fakeIndexer{}
	repo := &fakeChunkRepo{rows: map[string][]*model.KnowledgeChunk{}}
	text := strings.Repeat("x", 1950)
	p := NewProcessor(fakeStore{content: "%PDF"}, fakeExtractor{text: text}, fakeEmbedder{}, indexer, repo)

	task := tasks.KnowledgeIngestTask{DocumentID: "doc-1", Title: "Life Guide", ObjectName: "life.pdf"}
	require.NoError(t, p.Process(context.Background(), task))

	require.Len(t, indexer.docs, 3)
	doc := indexer.docs["doc-1_1"]
	assert.Equal(t, "doc-1", doc.DocumentID)
	assert.Equal(t, "Life Guide", doc.Title)
	assert.Equal(t, 1, doc.ChunkID)
	assert.Equal(t, "text-embedding-test", doc.ModelVersion)
	assert.Len(t, repo.rows["doc-1"], 3)

	// 文档变短后重新入库，多出来的分块被清理
	p = NewProcessor(fakeStore{content: "%PDF"}, fakeExtractor{text: "now it is short"}, fakeEmbedder{}, indexer, repo)
	require.NoError(t, p.Process(context.Background(), task))
	assert.ElementsMatch(t, []string{"doc-1_1", "doc-1_2"}, indexer.deleted)
	assert.Len(t, indexer.docs, 1)
	require.Len(t, repo.rows["doc-1"], 1)
	assert.Equal(t, "now it is short", repo.rows["doc-1"][0].TextContent)
}

func TestProcess_Failures(t *testing.T) {
	task := tasks.KnowledgeIngestTask{DocumentID: "doc-2", ObjectName: "empty.pdf"}
	repo := &fakeChunkRepo{rows: map[string][]*model.KnowledgeChunk{}}

	p := NewProcessor(fakeStore{}, fakeExtractor{text: "x"}, fakeEmbedder{}, &fakeIndexer{}, repo)
	assert.Error(t, p.Process(context.Background(), task))

	p = NewProcessor(fakeStore{content: "data"}, fakeExtractor{}, fakeEmbedder{}, &fakeIndexer{}, repo)
	assert.Error(t, p.Process(context.Background(), task))

	embedErr := errors.New("quota exceeded")
	p = NewProcessor(fakeStore{content: "data"}, fakeExtractor{text: "x"}, fakeEmbedder{err: embedErr}, &fakeIndexer{}, repo)
	require.ErrorIs(t, p.Process(context.Background(), task), embedErr)
	assert.Empty(t, repo.rows)
}
