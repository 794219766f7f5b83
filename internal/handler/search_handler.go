package handler

import (
	"net/http"
	"strconv"

	"persona-craft-go/internal/config"
	"persona-craft-go/internal/service"
	"persona-craft-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 结构体定义了检索相关的处理器。
type SearchHandler struct {
	retrievalService service.RetrievalService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(retrievalService service.RetrievalService) *SearchHandler {
	return &SearchHandler{
		retrievalService: retrievalService,
	}
}

// Search 是处理向量检索请求的 Gin 处理函数。
// 支持 domainKey / languageKey 精确过滤；mine=true 时只检索当前用户的贡献。
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("query")
	log.Infof("[SearchHandler] 收到检索请求, query: %s", query)

	if query == "" {
		log.Warnf("[SearchHandler] 检索请求失败: query 参数为空")
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的查询参数"})
		return
	}
	// topK 未携带时用配置默认值；显式携带的值原样透传，0 会命中检索层的免检索快速路径
	topK := config.Conf.RAG.TopK
	if raw := c.Query("topK"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			log.Warnf("[SearchHandler] 检索请求失败: topK 参数非法: %s", raw)
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 topK 参数"})
			return
		}
		topK = parsed
	}

	filters := service.RetrievalFilters{
		DomainKey:   c.Query("domainKey"),
		LanguageKey: c.Query("languageKey"),
	}
	if c.Query("mine") == "true" {
		user := currentUser(c)
		if user == nil {
			return
		}
		filters.AuthorID = strconv.FormatUint(uint64(user.ID), 10)
	}

	results, err := h.retrievalService.Retrieve(c.Request.Context(), []string{query}, topK, filters)
	if err != nil {
		respondServiceError(c, "Search", err)
		return
	}

	log.Infof("[SearchHandler] 检索成功, query: '%s', 返回 %d 条结果", query, len(results))
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": results, "message": "success"})
}
