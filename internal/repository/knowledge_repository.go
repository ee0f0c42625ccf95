package repository

import (
	"context"

	"crm-agent-go/internal/model"
	"crm-agent-go/pkg/retry"

	"gorm.io/gorm"
)

// KnowledgeChunkRepository 定义了对 knowledge_chunks 表的数据操作接口。
type KnowledgeChunkRepository interface {
	BatchCreate(ctx context.Context, chunks []*model.KnowledgeChunk) error
	FindByDocumentID(ctx context.Context, documentID string) ([]*model.KnowledgeChunk, error)
	DeleteByDocumentID(ctx context.Context, documentID string) error
}

type knowledgeChunkRepository struct {
	db     *gorm.DB
	policy retry.Policy
}

// NewKnowledgeChunkRepository 创建一个新的 KnowledgeChunkRepository 实例。
func NewKnowledgeChunkRepository(db *gorm.DB, policy retry.Policy) KnowledgeChunkRepository {
	return &knowledgeChunkRepository{db: db, policy: policy}
}

// BatchCreate 批量创建片段记录。
func (r *knowledgeChunkRepository) BatchCreate(ctx context.Context, chunks []*model.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return r.db.WithContext(ctx).CreateInBatches(chunks, 100).Error // 每100条记录一批
	})
}

// FindByDocumentID 查找某个文档的全部片段。
func (r *knowledgeChunkRepository) FindByDocumentID(ctx context.Context, documentID string) ([]*model.KnowledgeChunk, error) {
	var chunks []*model.KnowledgeChunk
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return r.db.WithContext(ctx).Where("document_id = ?", documentID).Order("chunk_id ASC").Find(&chunks).Error
	})
	return chunks, err
}

// DeleteByDocumentID 删除某个文档的全部片段，重新入库前调用。
func (r *knowledgeChunkRepository) DeleteByDocumentID(ctx context.Context, documentID string) error {
	return retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.KnowledgeChunk{}).Error
	})
}
