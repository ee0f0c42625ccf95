package agent

import (
	"context"

	"crm-agent-go/internal/model"
	"crm-agent-go/internal/repository"
)

// CRMReader 是编排器需要的 CRM 只读能力。
type CRMReader interface {
	CustomerByNumber(ctx context.Context, number string) repository.Lookup[model.Customer]
	AdvisorByNumber(ctx context.Context, number string) repository.Lookup[model.Advisor]
	CustomerPolicies(ctx context.Context, customerID uint) ([]model.Policy, error)
	CustomerClaims(ctx context.Context, customerID uint) ([]model.Claim, error)
	CustomerInteractions(ctx context.Context, customerID uint, limit int) ([]model.Interaction, error)
	AdvisorTasks(ctx context.Context, advisorID uint) ([]model.Task, error)
	AdvisorClients(ctx context.Context, advisorID uint) ([]model.Customer, error)
	RecommendAdvisors(ctx context.Context, specialization string, limit int) ([]model.Advisor, error)
}

// KnowledgeSearcher 在知识库中做向量 + 关键词混合检索。
type KnowledgeSearcher interface {
	HybridSearch(ctx context.Context, query string, topK int) ([]model.SearchResult, error)
}

// GraphSearcher 检索知识图谱事实。后端不可用时应返回空列表，但编排器不依赖这一点。
type GraphSearcher interface {
	GraphSearch(ctx context.Context, query string, topK int) ([]model.SearchResult, error)
}

// DocumentSearcher 按关键词检索文档元数据。
type DocumentSearcher interface {
	SearchDocuments(ctx context.Context, query string, limit int) ([]model.DocumentDTO, error)
}
