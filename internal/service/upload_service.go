package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"persona-craft-go/internal/config"
	"persona-craft-go/internal/model"
	"persona-craft-go/pkg/log"
	"persona-craft-go/pkg/storage"
	"persona-craft-go/pkg/tika"

	"github.com/minio/minio-go/v7"
)

// supportedUploadExtensions 是可以被 Tika 解析并向量化的文件类型。
var supportedUploadExtensions = map[string]struct{}{
	".pdf":  {},
	".doc":  {},
	".docx": {},
	".ppt":  {},
	".pptx": {},
	".txt":  {},
	".md":   {},
}

// UploadInput 是文件摄取请求中除文件本身以外的参数。
type UploadInput struct {
	Type        model.DocumentType
	DomainKey   string
	LanguageKey model.LanguageKey
	Visibility  model.Visibility
	Extra       model.JSONMap
}

// UploadService 接口定义了文件上传摄取的业务操作。
type UploadService interface {
	UploadDocument(ctx context.Context, file multipart.File, fileName string, userID uint, input UploadInput) (*ContributionResult, error)
	GetSourceURL(ctx context.Context, userID, docID uint) (string, error)
}

type uploadService struct {
	contribution ContributionService
	tikaClient   *tika.Client
	minioCfg     config.MinIOConfig
}

// NewUploadService 创建一个新的 UploadService 实例。
func NewUploadService(contribution ContributionService, tikaClient *tika.Client, minioCfg config.MinIOConfig) UploadService {
	return &uploadService{
		contribution: contribution,
		tikaClient:   tikaClient,
		minioCfg:     minioCfg,
	}
}

// UploadDocument 处理单个文件的摄取：原始文件归档到 MinIO，由 Tika 抽取
// 正文后走与手工贡献相同的摄取流水线。
func (s *uploadService) UploadDocument(ctx context.Context, file multipart.File, fileName string, userID uint, input UploadInput) (*ContributionResult, error) {
	log.Infof("[UploadDocument] 开始处理文件摄取, fileName: %s, userID: %d", fileName, userID)

	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := supportedUploadExtensions[ext]; !ok {
		return nil, fmt.Errorf("%w: 不支持的文件类型 %s", ErrValidation, ext)
	}

	// 1. 读入文件内容。文件既要归档又要送解析，先缓冲一份
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: 文件内容为空", ErrValidation)
	}

	// 2. 将原始文件归档到 MinIO
	objectName := fmt.Sprintf("contrib/%d/%s", userID, fileName)
	_, err = storage.MinioClient.PutObject(ctx, s.minioCfg.BucketName, objectName,
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	if err != nil {
		log.Errorf("[UploadDocument] 归档文件到MinIO失败, objectName: %s, error: %v", objectName, err)
		return nil, fmt.Errorf("归档文件失败: %w", err)
	}

	// 3. 通过 Tika 抽取正文
	text, err := s.tikaClient.ExtractText(bytes.NewReader(data), fileName)
	if err != nil {
		log.Errorf("[UploadDocument] Tika解析文件失败, fileName: %s, error: %v", fileName, err)
		return nil, fmt.Errorf("解析文件内容失败: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: 文件中没有可提取的文本", ErrValidation)
	}

	// 4. 走通用的贡献摄取流程，来源记录为原始文件名，
	// 归档对象名写入 extra 供后续生成下载链接
	extra := input.Extra.Clone()
	if extra == nil {
		extra = model.JSONMap{}
	}
	extra[metaKeyObjectName] = objectName

	result, err := s.contribution.Create(ctx, CreateContributionInput{
		Text:        text,
		Type:        input.Type,
		DomainKey:   input.DomainKey,
		LanguageKey: input.LanguageKey,
		AuthorID:    userID,
		Source:      fileName,
		Visibility:  input.Visibility,
		Extra:       extra,
	})
	if err != nil {
		return nil, err
	}

	log.Infof("[UploadDocument] 文件摄取完成, fileName: %s, doc_id: %d, chunks: %d", fileName, result.ID, result.Chunks)
	return result, nil
}

// metaKeyObjectName 是归档原始文件在 MinIO 中的对象名的 extra 键。
const metaKeyObjectName = "object_name"

// GetSourceURL 为通过文件上传摄取的贡献生成原始文件的临时下载链接。
// 手工录入的贡献没有归档文件，返回 NotFound。
func (s *uploadService) GetSourceURL(ctx context.Context, userID, docID uint) (string, error) {
	doc, err := s.contribution.Get(ctx, userID, docID)
	if err != nil {
		return "", err
	}

	objectName := doc.Metadata.GetString(metaKeyObjectName)
	if objectName == "" {
		return "", ErrNotFound
	}

	return storage.GetPresignedURL(s.minioCfg.BucketName, objectName, time.Hour)
}
