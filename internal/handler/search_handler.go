package handler

import (
	"net/http"
	"strconv"

	"crm-agent-go/internal/service"
	"crm-agent-go/pkg/log"

	"github.com/gin-gonic/gin"
)

const maxTopK = 50

// SearchHandler 结构体定义了搜索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// HybridSearch 是处理混合搜索请求的 Gin 处理函数。
func (h *SearchHandler) HybridSearch(c *gin.Context) {
	query := c.Query("query")
	log.Infof("[SearchHandler] 收到混合搜索请求, query: %s", query)

	if query == "" {
		log.Warnf("[SearchHandler] 搜索请求失败: query 参数为空")
		respond(c, http.StatusBadRequest, "query is required", nil)
		return
	}
	topK, err := strconv.Atoi(c.DefaultQuery("topK", "10"))
	if err != nil || topK <= 0 {
		topK = 10
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	results, err := h.searchService.HybridSearch(c.Request.Context(), query, topK)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Infof("[SearchHandler] 混合搜索成功, query: '%s', 返回 %d 条结果", query, len(results))
	respond(c, http.StatusOK, "success", results)
}
