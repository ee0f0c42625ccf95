// Package pipeline 定义了知识入库的核心流程。
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"crm-agent-go/internal/model"
	"crm-agent-go/internal/repository"
	"crm-agent-go/pkg/embedding"
	"crm-agent-go/pkg/log"
	"crm-agent-go/pkg/storage"
	"crm-agent-go/pkg/tasks"
)

const (
	chunkSize    = 1000
	chunkOverlap = 100
)

// TextExtractor 从文件流中提取纯文本。
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.Reader, fileName string) (string, error)
}

// ChunkIndexer 把片段写入检索索引。
type ChunkIndexer interface {
	Index(ctx context.Context, id string, doc any) error
	Delete(ctx context.Context, id string) error
}

// Processor 封装了知识入库的所有依赖和逻辑。
type Processor struct {
	store           storage.ObjectStore
	extractor       TextExtractor
	embeddingClient embedding.Client
	indexer         ChunkIndexer
	chunkRepo       repository.KnowledgeChunkRepository
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	store storage.ObjectStore,
	extractor TextExtractor,
	embeddingClient embedding.Client,
	indexer ChunkIndexer,
	chunkRepo repository.KnowledgeChunkRepository,
) *Processor {
	return &Processor{
		store:           store,
		extractor:       extractor,
		embeddingClient: embeddingClient,
		indexer:         indexer,
		chunkRepo:       chunkRepo,
	}
}

// Process 下载对象、提取文本、切块、向量化并写入 ES 与 MySQL。
// 同一文档重复入库时会先清理旧的片段记录，ES 文档按固定 ID 覆盖。
func (p *Processor) Process(ctx context.Context, task tasks.KnowledgeIngestTask) error {
	log.Infof("[Processor] 开始处理入库任务, DocumentID: %s, Object: %s", task.DocumentID, task.ObjectName)

	// 1. 从 MinIO 下载文件
	object, err := p.store.GetObject(ctx, task.ObjectName)
	if err != nil {
		return fmt.Errorf("从 MinIO 下载文件失败: %w", err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(object)
	if err != nil {
		return fmt.Errorf("读取MinIO对象流失败: %w", err)
	}
	if size == 0 {
		log.Warnf("[Processor] 文件 '%s' 内容为空, 处理中止", task.ObjectName)
		return errors.New("文件内容为空")
	}
	log.Infof("[Processor] 步骤1: 文件下载成功, 大小 %d 字节", size)

	// 2. 使用 Tika 提取文本
	textContent, err := p.extractor.ExtractText(ctx, bytes.NewReader(buf.Bytes()), task.ObjectName)
	if err != nil {
		return fmt.Errorf("使用 Tika 提取文本失败: %w", err)
	}
	if textContent == "" {
		return errors.New("提取的文本内容为空")
	}
	log.Infof("[Processor] 步骤2: 文本提取成功, 内容长度: %d 字符", utf8.RuneCountInString(textContent))

	// 3. 文本切块
	chunks := splitText(textContent, chunkSize, chunkOverlap)
	if len(chunks) == 0 {
		return errors.New("未生成任何文本分块")
	}
	log.Infof("[Processor] 步骤3: 文本分块完成, 共生成 %d 个分块", len(chunks))

	// 4. 向量化并索引到 ES
	modelVersion := p.embeddingClient.ModelVersion()
	rows := make([]*model.KnowledgeChunk, 0, len(chunks))
	for i, chunk := range chunks {
		vector, err := p.embeddingClient.CreateEmbedding(ctx, chunk)
		if err != nil {
			return fmt.Errorf("块 %d 向量化失败: %w", i, err)
		}
		esDoc := model.EsDocument{
			VectorID:     fmt.Sprintf("%s_%d", task.DocumentID, i),
			DocumentID:   task.DocumentID,
			Title:        task.Title,
			ChunkID:      i,
			TextContent:  chunk,
			Vector:       vector,
			ModelVersion: modelVersion,
		}
		if err := p.indexer.Index(ctx, esDoc.VectorID, esDoc); err != nil {
			return fmt.Errorf("索引块 %d 到 Elasticsearch 失败: %w", i, err)
		}
		rows = append(rows, &model.KnowledgeChunk{
			DocumentID:   task.DocumentID,
			Title:        task.Title,
			ChunkID:      i,
			TextContent:  chunk,
			ModelVersion: modelVersion,
		})
	}
	log.Infof("[Processor] 步骤4: %d 个分块已向量化并索引", len(rows))

	// 5. 在关系库中记录片段，并清理上一次入库多出来的 ES 片段
	previous, err := p.chunkRepo.FindByDocumentID(ctx, task.DocumentID)
	if err != nil {
		log.Warnf("[Processor] 读取旧分块失败 (document_id=%s): %v", task.DocumentID, err)
	}
	for _, old := range previous {
		if old.ChunkID < len(chunks) {
			continue
		}
		if err := p.indexer.Delete(ctx, fmt.Sprintf("%s_%d", task.DocumentID, old.ChunkID)); err != nil {
			log.Warnf("[Processor] 删除过期分块 %d 失败: %v", old.ChunkID, err)
		}
	}
	if err := p.chunkRepo.DeleteByDocumentID(ctx, task.DocumentID); err != nil {
		log.Warnf("[Processor] 清理 knowledge_chunks 旧记录失败 (document_id=%s): %v", task.DocumentID, err)
	}
	if err := p.chunkRepo.BatchCreate(ctx, rows); err != nil {
		return fmt.Errorf("批量保存文本分块失败: %w", err)
	}

	log.Infof("[Processor] 入库任务处理成功, DocumentID: %s", task.DocumentID)
	return nil
}

// splitText 将长文本按指定大小和重叠进行切分。
func splitText(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 || size <= 0 {
		return nil
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}

	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
