package handler

import (
	"net/http"

	"crm-agent-go/internal/service"
	"crm-agent-go/pkg/errx"
	"crm-agent-go/pkg/log"
	"crm-agent-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理知识库管理相关的 API 请求。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// IngestKnowledge 为 MinIO 中已有的对象投递一个入库任务。
func (h *AdminHandler) IngestKnowledge(c *gin.Context) {
	var req service.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errx.New(err, http.StatusBadRequest, "objectName is required"))
		return
	}

	task, err := h.adminService.IngestKnowledge(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	if v, ok := c.Get("claims"); ok {
		claims := v.(*token.CustomClaims)
		log.Infof("[AdminHandler] 管理员 %s 提交了入库任务 %s", claims.Identity, task.DocumentID)
	}
	respond(c, http.StatusAccepted, "ingest task queued", task)
}
