package service

import (
	"context"
	"regexp"
	"strings"

	"crm-agent-go/internal/model"
	"crm-agent-go/pkg/log"
	"crm-agent-go/pkg/storage"
)

// DocumentService 按关键词检索文档，并附上临时下载链接。
type DocumentService interface {
	SearchDocuments(ctx context.Context, query string, limit int) ([]model.DocumentDTO, error)
}

// DocumentRepository 是文档元数据的查询能力。
type DocumentRepository interface {
	SearchDocuments(ctx context.Context, terms []string, limit int) ([]model.Document, error)
}

type documentService struct {
	repo  DocumentRepository
	store storage.ObjectStore
}

// NewDocumentService 创建一个新的 DocumentService 实例。store 为 nil 时不生成链接。
func NewDocumentService(repo DocumentRepository, store storage.ObjectStore) DocumentService {
	return &documentService{repo: repo, store: store}
}

func (s *documentService) SearchDocuments(ctx context.Context, query string, limit int) ([]model.DocumentDTO, error) {
	terms := documentTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	docs, err := s.repo.SearchDocuments(ctx, terms, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]model.DocumentDTO, 0, len(docs))
	for _, d := range docs {
		dto := model.DocumentDTO{ID: d.ID, Title: d.Title, Category: d.Category, Description: d.Description}
		if s.store != nil && d.ObjectName != "" {
			url, err := s.store.PresignedURL(ctx, d.ObjectName)
			if err != nil {
				log.Warnf("[DocumentService] 文档 %d 生成下载链接失败: %v", d.ID, err)
			} else {
				dto.URL = url
			}
		}
		dtos = append(dtos, dto)
	}
	return dtos, nil
}

var (
	wordPattern = regexp.MustCompile(`[a-z0-9]+`)

	// 不参与文档匹配的常见词，包括触发文档意图本身的词
	documentStopWords = map[string]struct{}{
		"the": {}, "and": {}, "for": {}, "with": {}, "where": {}, "what": {}, "which": {}, "can": {},
		"how": {}, "find": {}, "show": {}, "need": {}, "want": {}, "please": {}, "about": {}, "from": {},
		"have": {}, "does": {}, "this": {}, "that": {}, "your": {}, "mine": {}, "give": {}, "get": {},
		"document": {}, "documents": {}, "form": {}, "forms": {}, "file": {}, "files": {}, "download": {},
		"pdf": {}, "copy": {}, "send": {}, "any": {}, "there": {}, "are": {}, "you": {},
	}
)

// documentTerms 从问句中提取用于匹配文档的关键词，去重并保持原有顺序。
func documentTerms(query string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(query), -1) {
		if len(w) < 3 {
			continue
		}
		if _, stop := documentStopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	return terms
}
