package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newESClient(t *testing.T, status int, body string) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestGraphSearch(t *testing.T) {
	client := newESClient(t, http.StatusOK, `{"hits":{"hits":[
		{"_score":2.5,"_source":{"fact_id":"f1","subject":"Term Life","predicate":"covers","object":"death benefit","fact":"Term life covers a death benefit.","source":"doc-9"}}
	]}}`)
	results, err := NewGraphService(client, "knowledge_graph").GraphSearch(context.Background(), "term life", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "f1", results[0].ID)
	assert.Equal(t, "doc-9", results[0].DocumentID)
	assert.Equal(t, "Term Life", results[0].Title)
	assert.Equal(t, "Term life covers a death benefit.", results[0].Content)
	assert.Equal(t, 2.5, results[0].Score)
	assert.Equal(t, "covers", results[0].Metadata["predicate"])
}

func TestGraphSearch_BackendErrorIsEmpty(t *testing.T) {
	client := newESClient(t, http.StatusInternalServerError, `{"error":"boom"}`)
	results, err := NewGraphService(client, "knowledge_graph").GraphSearch(context.Background(), "term life", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHybridSearch_FallsBackToKeywords(t *testing.T) {
	client := newESClient(t, http.StatusOK, `{"hits":{"hits":[
		{"_score":1.2,"_source":{"vector_id":"d1_0","document_id":"d1","title":"Life Guide","chunk_id":0,"text_content":"Life insurance basics","model_version":"m1"}}
	]}}`)
	results, err := NewSearchService(failingEmbedder{}, client, "knowledge_base").HybridSearch(context.Background(), "life insurance", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].DocumentID)
	assert.Equal(t, "0", results[0].Metadata["chunkId"])
}

func TestBuildHybridQuery(t *testing.T) {
	q := buildHybridQuery(nil, "life insurance", "life insurance", 5)
	assert.NotContains(t, q, "knn")
	assert.NotContains(t, q, "rescore")
	assert.Equal(t, 5, q["size"])

	q = buildHybridQuery([]float32{0.1, 0.2}, "life", "", 2)
	knn := q["knn"].(map[string]any)
	assert.Equal(t, 60, knn["k"])
	assert.Contains(t, q, "rescore")
	boolQuery := q["query"].(map[string]any)["bool"].(map[string]any)
	assert.NotContains(t, boolQuery, "should")
}

func TestNormalizeQuery(t *testing.T) {
	normalized, phrase := normalizeQuery("Can you please tell me about Term-Life?")
	assert.Equal(t, "about term life", normalized)
	assert.Equal(t, normalized, phrase)

	normalized, phrase = normalizeQuery("???")
	assert.Equal(t, "???", normalized)
	assert.Empty(t, phrase)
}

type failingEmbedder struct{}

func (failingEmbedder) CreateEmbedding(context.Context, string) ([]float32, error) {
	return nil, assert.AnError
}

func (failingEmbedder) ModelVersion() string { return "test" }
