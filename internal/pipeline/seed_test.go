package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"crm-agent-go/internal/model"
	"crm-agent-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	fakeStore
	objects map[string]string
}

func (s *recordingStore) PutObject(_ context.Context, name string, r io.Reader, _ int64) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[name] = string(b)
	return nil
}

type recordingQueue struct{ tasks []tasks.KnowledgeIngestTask }

func (q *recordingQueue) ProduceIngestTask(_ context.Context, t tasks.KnowledgeIngestTask) error {
	q.tasks = append(q.tasks, t)
	return nil
}

func TestSeedDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "guides"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guides", "term-life.txt"), []byte("term life basics"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "claims.md"), []byte("how to file a claim"), 0o644))

	store := &recordingStore{objects: map[string]string{}}
	queue := &recordingQueue{}
	repo := &fakeChunkRepo{rows: map[string][]*model.KnowledgeChunk{}}

	n := SeedDirectory(context.Background(), dir, store, repo, queue)
	assert.Equal(t, 2, n)
	assert.Equal(t, "term life basics", store.objects["seed/guides/term-life.txt"])
	require.Len(t, queue.tasks, 2)
	for _, task := range queue.tasks {
		assert.Contains(t, task.DocumentID, "seed-")
		assert.Equal(t, "knowledge", task.Bucket)
	}

	// 已入库的文件第二次会被跳过
	first := queue.tasks[0]
	repo.rows[first.DocumentID] = []*model.KnowledgeChunk{{DocumentID: first.DocumentID}}
	queue.tasks = nil
	assert.Equal(t, 1, SeedDirectory(context.Background(), dir, store, repo, queue))
	require.Len(t, queue.tasks, 1)
	assert.NotEqual(t, first.DocumentID, queue.tasks[0].DocumentID)
}

func TestSeedDirectory_MissingDir(t *testing.T) {
	n := SeedDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"), &recordingStore{}, &fakeChunkRepo{}, &recordingQueue{})
	assert.Zero(t, n)
}
