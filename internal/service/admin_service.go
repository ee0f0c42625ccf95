package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"crm-agent-go/pkg/errx"
	"crm-agent-go/pkg/log"
	"crm-agent-go/pkg/tasks"

	"github.com/google/uuid"
)

// IngestRequest 是知识入库请求。
type IngestRequest struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	ObjectName string `json:"objectName" binding:"required"`
}

// TaskProducer 负责把入库任务投递到消息队列。
type TaskProducer interface {
	ProduceIngestTask(ctx context.Context, task tasks.KnowledgeIngestTask) error
}

// AdminService 接口定义了管理员相关的业务操作。
type AdminService interface {
	IngestKnowledge(ctx context.Context, req IngestRequest) (*tasks.KnowledgeIngestTask, error)
}

type adminService struct {
	producer TaskProducer
	bucket   string
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(producer TaskProducer, bucket string) AdminService {
	return &adminService{producer: producer, bucket: bucket}
}

var errMissingObject = errors.New("object name is required")

// IngestKnowledge 校验请求并投递入库任务；未指定 DocumentID 时自动生成。
func (s *adminService) IngestKnowledge(ctx context.Context, req IngestRequest) (*tasks.KnowledgeIngestTask, error) {
	objectName := strings.TrimSpace(req.ObjectName)
	if objectName == "" {
		return nil, errx.New(errMissingObject, http.StatusBadRequest, "objectName is required")
	}
	task := tasks.KnowledgeIngestTask{
		DocumentID: strings.TrimSpace(req.DocumentID),
		Title:      strings.TrimSpace(req.Title),
		ObjectName: objectName,
		Bucket:     s.bucket,
	}
	if task.DocumentID == "" {
		task.DocumentID = uuid.NewString()
	}
	if task.Title == "" {
		task.Title = objectName
	}
	if err := s.producer.ProduceIngestTask(ctx, task); err != nil {
		return nil, fmt.Errorf("produce ingest task: %w", err)
	}
	log.Infof("[AdminService] 已投递入库任务: DocumentID=%s, Object=%s", task.DocumentID, task.ObjectName)
	return &task, nil
}
