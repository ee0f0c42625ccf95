package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"crm-agent-go/internal/model"
	"crm-agent-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

// GraphService 在知识图谱事实索引上检索。
type GraphService interface {
	GraphSearch(ctx context.Context, query string, topK int) ([]model.SearchResult, error)
}

type graphService struct {
	esClient  *elasticsearch.Client
	indexName string
}

// NewGraphService 创建一个新的 GraphService 实例。
func NewGraphService(esClient *elasticsearch.Client, indexName string) GraphService {
	return &graphService{esClient: esClient, indexName: indexName}
}

// GraphSearch 按相关度返回事实片段。后端完全不可用时返回空列表而不是错误。
func (s *graphService) GraphSearch(ctx context.Context, query string, topK int) ([]model.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"fact^2", "subject", "object"},
			},
		},
		"size": topK,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("failed to encode graph query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.indexName),
		s.esClient.Search.WithBody(&buf),
	)
	if err != nil {
		log.Warnf("[GraphService] 图谱检索不可用: %v", err)
		return []model.SearchResult{}, nil
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Warnf("[GraphService] 图谱检索返回错误: %s", res.Status())
		return []model.SearchResult{}, nil
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.GraphFact `json:"_source"`
				Score  float64         `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		log.Warnf("[GraphService] 解析图谱检索结果失败: %v", err)
		return []model.SearchResult{}, nil
	}

	results := make([]model.SearchResult, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		f := hit.Source
		results = append(results, model.SearchResult{
			ID:         f.FactID,
			DocumentID: f.Source,
			Title:      f.Subject,
			Content:    f.Fact,
			Score:      hit.Score,
			Metadata:   map[string]string{"predicate": f.Predicate, "object": f.Object},
		})
	}
	return results, nil
}
