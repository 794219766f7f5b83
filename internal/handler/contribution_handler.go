package handler

import (
	"errors"
	"net/http"
	"strconv"

	"persona-craft-go/internal/model"
	"persona-craft-go/internal/service"
	"persona-craft-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ContributionHandler 负责处理贡献内容的增删改查 API 请求。
type ContributionHandler struct {
	contributionService service.ContributionService
}

// NewContributionHandler 创建一个新的 ContributionHandler 实例。
func NewContributionHandler(contributionService service.ContributionService) *ContributionHandler {
	return &ContributionHandler{contributionService: contributionService}
}

// CreateContributionRequest 定义了创建贡献 API 的请求体结构。
type CreateContributionRequest struct {
	Text        string        `json:"text" binding:"required"`
	Type        string        `json:"type" binding:"required"`
	DomainKey   string        `json:"domainKey"`
	LanguageKey string        `json:"languageKey"`
	Source      string        `json:"source"`
	Visibility  string        `json:"visibility"`
	Extra       model.JSONMap `json:"extra"`
}

// UpdateContributionRequest 定义了更新贡献 API 的请求体结构。
// 所有字段可选，缺省字段保持原值。
type UpdateContributionRequest struct {
	Text        *string        `json:"text"`
	Type        *string        `json:"type"`
	DomainKey   *string        `json:"domainKey"`
	LanguageKey *string        `json:"languageKey"`
	Source      *string        `json:"source"`
	Visibility  *string        `json:"visibility"`
	Extra       *model.JSONMap `json:"extra"`
}

// Create 处理创建贡献内容的请求。
func (h *ContributionHandler) Create(c *gin.Context) {
	var req CreateContributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("CreateContribution: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：text 和 type 不能为空",
		})
		return
	}

	user := currentUser(c)
	if user == nil {
		return
	}

	result, err := h.contributionService.Create(c.Request.Context(), service.CreateContributionInput{
		Text:        req.Text,
		Type:        model.DocumentType(req.Type),
		DomainKey:   req.DomainKey,
		LanguageKey: model.LanguageKey(req.LanguageKey),
		AuthorID:    user.ID,
		Source:      req.Source,
		Visibility:  model.Visibility(req.Visibility),
		Extra:       req.Extra,
	})
	if err != nil {
		respondServiceError(c, "CreateContribution", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": result, "message": "success"})
}

// List 处理分页列出当前用户贡献内容的请求。
func (h *ContributionHandler) List(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	cursor, _ := strconv.ParseUint(c.DefaultQuery("cursor", "0"), 10, 64)

	page, err := h.contributionService.List(c.Request.Context(), user.ID, limit, uint(cursor))
	if err != nil {
		respondServiceError(c, "ListContributions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": page, "message": "success"})
}

// Get 处理获取单份贡献内容的请求。
func (h *ContributionHandler) Get(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	doc, err := h.contributionService.Get(c.Request.Context(), user.ID, id)
	if err != nil {
		respondServiceError(c, "GetContribution", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": doc, "message": "success"})
}

// Update 处理部分更新贡献内容的请求。
func (h *ContributionHandler) Update(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req UpdateContributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("UpdateContribution: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载",
		})
		return
	}

	input := service.UpdateContributionInput{
		DomainKey: req.DomainKey,
		Source:    req.Source,
		Text:      req.Text,
		Extra:     req.Extra,
	}
	if req.Type != nil {
		t := model.DocumentType(*req.Type)
		input.Type = &t
	}
	if req.LanguageKey != nil {
		l := model.LanguageKey(*req.LanguageKey)
		input.LanguageKey = &l
	}
	if req.Visibility != nil {
		v := model.Visibility(*req.Visibility)
		input.Visibility = &v
	}

	result, err := h.contributionService.Update(c.Request.Context(), user.ID, id, input)
	if err != nil {
		respondServiceError(c, "UpdateContribution", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": result, "message": "success"})
}

// Delete 处理删除贡献内容的请求。
func (h *ContributionHandler) Delete(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.contributionService.Delete(c.Request.Context(), user.ID, id); err != nil {
		respondServiceError(c, "DeleteContribution", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "删除成功"})
}

// currentUser 从上下文中取出 AuthMiddleware 注入的用户，取不到时直接响应错误。
func currentUser(c *gin.Context) *model.User {
	userValue, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "未认证用户或无法获取用户信息",
		})
		return nil
	}
	user, ok := userValue.(*model.User)
	if !ok || user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "用户数据类型错误",
		})
		return nil
	}
	return user
}

// pathID 解析路径参数 id。
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "非法的 id 参数",
		})
		return 0, false
	}
	return uint(id), true
}

// respondServiceError 将 service 层错误映射为对应的 HTTP 状态码。
func respondServiceError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "资源不存在",
		})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": err.Error(),
		})
	default:
		log.Errorf("%s: %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "服务器内部错误",
		})
	}
}
