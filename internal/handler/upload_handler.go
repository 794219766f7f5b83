package handler

import (
	"net/http"

	"persona-craft-go/internal/model"
	"persona-craft-go/internal/service"
	"persona-craft-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// UploadHandler 负责处理文件上传摄取的 API 请求。
type UploadHandler struct {
	uploadService service.UploadService
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(uploadService service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// Upload 处理单个文件的上传摄取：multipart 表单字段 file 为文件本体，
// type / domainKey / languageKey / visibility 为摄取参数。
func (h *UploadHandler) Upload(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.Warnf("Upload: Missing file in request, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "缺少 file 字段",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Errorf("Upload: Failed to open uploaded file, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "读取上传文件失败",
		})
		return
	}
	defer file.Close()

	input := service.UploadInput{
		Type:        model.DocumentType(c.DefaultPostForm("type", string(model.DocumentTypeDoc))),
		DomainKey:   c.PostForm("domainKey"),
		LanguageKey: model.LanguageKey(c.PostForm("languageKey")),
		Visibility:  model.Visibility(c.PostForm("visibility")),
	}

	result, err := h.uploadService.UploadDocument(c.Request.Context(), file, fileHeader.Filename, user.ID, input)
	if err != nil {
		respondServiceError(c, "Upload", err)
		return
	}

	log.Infof("[UploadHandler] 文件摄取成功, fileName: %s, doc_id: %d", fileHeader.Filename, result.ID)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": result, "message": "success"})
}

// SourceURL 返回上传摄取的贡献对应原始文件的临时下载链接。
func (h *UploadHandler) SourceURL(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	url, err := h.uploadService.GetSourceURL(c.Request.Context(), user.ID, id)
	if err != nil {
		respondServiceError(c, "SourceURL", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": gin.H{"url": url}, "message": "success"})
}
