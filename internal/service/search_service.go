package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"crm-agent-go/internal/model"
	"crm-agent-go/pkg/embedding"
	"crm-agent-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

// SearchService 接口定义了知识库检索操作。
type SearchService interface {
	HybridSearch(ctx context.Context, query string, topK int) ([]model.SearchResult, error)
}

type searchService struct {
	embeddingClient embedding.Client
	esClient        *elasticsearch.Client
	indexName       string
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(embeddingClient embedding.Client, esClient *elasticsearch.Client, indexName string) SearchService {
	return &searchService{
		embeddingClient: embeddingClient,
		esClient:        esClient,
		indexName:       indexName,
	}
}

// HybridSearch 执行两阶段混合搜索：k-NN 召回，再用 BM25 重排。
// 向量化失败时退化为纯关键词检索。
func (s *searchService) HybridSearch(ctx context.Context, query string, topK int) ([]model.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	log.Infof("[SearchService] 开始执行混合搜索, query: '%s', topK: %d", query, topK)

	normalized, phrase := normalizeQuery(query)
	if normalized != query {
		log.Debugf("[SearchService] 规范化查询: '%s' -> '%s'", query, normalized)
	}

	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		log.Warnf("[SearchService] 向量化查询失败，退化为关键词检索: %v", err)
		queryVector = nil
	}

	hits, err := s.search(ctx, buildHybridQuery(queryVector, normalized, phrase, topK))
	if err != nil {
		return nil, err
	}
	// 兜底：用核心短语重试一次
	if len(hits) == 0 && phrase != "" && phrase != normalized {
		log.Infof("[SearchService] 使用核心短语重试查询: '%s'", phrase)
		if hits, err = s.search(ctx, buildHybridQuery(queryVector, phrase, phrase, topK)); err != nil {
			return nil, err
		}
	}

	results := make([]model.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, model.SearchResult{
			ID:         hit.Source.VectorID,
			DocumentID: hit.Source.DocumentID,
			Title:      hit.Source.Title,
			Content:    hit.Source.TextContent,
			Score:      hit.Score,
			Metadata: map[string]string{
				"chunkId":      strconv.Itoa(hit.Source.ChunkID),
				"modelVersion": hit.Source.ModelVersion,
			},
		})
	}
	log.Infof("[SearchService] 混合搜索执行完毕, 返回 %d 条结果", len(results))
	return results, nil
}

type esHit struct {
	Source model.EsDocument `json:"_source"`
	Score  float64          `json:"_score"`
}

func (s *searchService) search(ctx context.Context, esQuery map[string]any) ([]esHit, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.indexName),
		s.esClient.Search.WithBody(&buf),
		s.esClient.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[SearchService] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []esHit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}
	return esResponse.Hits.Hits, nil
}

// buildHybridQuery 构建 k-NN 召回 + BM25 rescore 的查询；vector 为空时只做关键词检索。
func buildHybridQuery(vector []float32, text, phrase string, topK int) map[string]any {
	recallK := topK * 30
	boolQuery := map[string]any{
		"must": map[string]any{
			"match": map[string]any{"text_content": text},
		},
	}
	if should := buildPhraseShould(phrase); should != nil {
		boolQuery["should"] = should
	}

	q := map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"size":  topK,
	}
	if len(vector) == 0 {
		return q
	}
	q["knn"] = map[string]any{
		"field":          "vector",
		"query_vector":   vector,
		"k":              recallK,
		"num_candidates": recallK,
	}
	q["rescore"] = map[string]any{
		"window_size": recallK,
		"query": map[string]any{
			"rescore_query": map[string]any{
				"match": map[string]any{
					"text_content": map[string]any{"query": text, "operator": "and"},
				},
			},
			"query_weight":         0.2, // 保留部分 k-NN 分数
			"rescore_query_weight": 1.0, // BM25 分数权重
		},
	}
	return q
}

var (
	reKeep  = regexp.MustCompile(`[^a-z0-9\s]+`)
	reSpace = regexp.MustCompile(`\s+`)

	// 常见口语/功能词
	stopPhrases = []string{"can you", "could you", "please", "tell me", "i want to know", "what is", "what are", "how do i", "how does"}
)

// normalizeQuery 对用户查询进行轻量去噪与短语提取。
// 返回值：规范化后的查询（用于 BM25/rescore）与核心短语（用于 match_phrase 兜底）。
func normalizeQuery(q string) (string, string) {
	if q == "" {
		return q, ""
	}
	lower := strings.ToLower(q)
	for _, sp := range stopPhrases {
		lower = strings.ReplaceAll(lower, sp, " ")
	}
	kept := reKeep.ReplaceAllString(lower, " ")
	kept = strings.TrimSpace(reSpace.ReplaceAllString(kept, " "))
	if kept == "" {
		return q, ""
	}
	return kept, kept
}

// buildPhraseShould 构建 match_phrase should 子句（带 boost），为空则返回 nil
func buildPhraseShould(phrase string) []map[string]any {
	if phrase == "" {
		return nil
	}
	return []map[string]any{
		{
			"match_phrase": map[string]any{
				"text_content": map[string]any{
					"query": phrase,
					"boost": 3.0,
				},
			},
		},
	}
}
