package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"persona-craft-go/internal/model"
	"persona-craft-go/internal/pipeline"
	"persona-craft-go/internal/repository"
	"persona-craft-go/pkg/kafka"
	"persona-craft-go/pkg/log"

	"gorm.io/gorm"
)

// 列表分页的限制参数。
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// CreateContributionInput 是创建贡献内容的请求负载。
type CreateContributionInput struct {
	Text        string
	Type        model.DocumentType
	DomainKey   string
	LanguageKey model.LanguageKey
	AuthorID    uint
	Source      string
	Visibility  model.Visibility
	Extra       model.JSONMap
}

// UpdateContributionInput 是部分更新的请求负载；nil 字段保持原值（合并语义）。
type UpdateContributionInput struct {
	Text        *string
	Type        *model.DocumentType
	DomainKey   *string
	LanguageKey *model.LanguageKey
	Source      *string
	Visibility  *model.Visibility
	Extra       *model.JSONMap
}

// ContributionResult 是创建/更新返回的结果：文档 id 与产生的分块数。
type ContributionResult struct {
	ID     uint `json:"id"`
	Chunks int  `json:"chunks"`
}

// ContributionPage 是一页列表结果。NextCursor 为 0 表示已到末尾。
type ContributionPage struct {
	Items      []model.Document `json:"items"`
	NextCursor uint             `json:"nextCursor,omitempty"`
}

// ContributionService 接口定义了贡献内容的公开操作。
// list/get/update/delete 都按作者归属检查，匿名摄取只允许走 Create。
type ContributionService interface {
	Create(ctx context.Context, input CreateContributionInput) (*ContributionResult, error)
	List(ctx context.Context, authorID uint, limit int, cursor uint) (*ContributionPage, error)
	Get(ctx context.Context, authorID, id uint) (*model.Document, error)
	Update(ctx context.Context, authorID, id uint, input UpdateContributionInput) (*ContributionResult, error)
	Delete(ctx context.Context, authorID, id uint) error
}

type contributionService struct {
	docRepo  repository.DocumentRepository
	ingestor *pipeline.Ingestor
}

// NewContributionService 创建一个新的 ContributionService 实例。
func NewContributionService(docRepo repository.DocumentRepository, ingestor *pipeline.Ingestor) ContributionService {
	return &contributionService{docRepo: docRepo, ingestor: ingestor}
}

// Create 持久化一份新的贡献文档并建立向量索引。
// 文档行先于任何向量工作提交；向量阶段失败时错误向上传播，但文本已是
// 权威数据，重试同文本的更新即可补齐索引。
func (s *contributionService) Create(ctx context.Context, input CreateContributionInput) (*ContributionResult, error) {
	if err := validateCreate(&input); err != nil {
		return nil, err
	}

	doc := &model.Document{
		Text:        input.Text,
		Type:        input.Type,
		DomainKey:   input.DomainKey,
		LanguageKey: input.LanguageKey,
		AuthorID:    input.AuthorID,
		Source:      input.Source,
		Metadata:    input.Extra,
		Visibility:  input.Visibility,
	}

	if err := s.docRepo.Create(doc); err != nil {
		return nil, fmt.Errorf("创建文档记录失败: %w", err)
	}

	// 创建路径不可能存在旧分块，跳过清除阶段
	chunks, err := s.ingestor.Reindex(ctx, doc, doc.Metadata, false)
	if err != nil {
		return nil, err
	}

	kafka.ProduceContributionEvent(kafka.ContributionEvent{
		Action:   "ingested",
		DocID:    doc.ID,
		AuthorID: doc.AuthorID,
		Chunks:   chunks,
	})

	log.Infof("[ContributionService] 创建完成, doc_id: %d, chunks: %d", doc.ID, chunks)
	return &ContributionResult{ID: doc.ID, Chunks: chunks}, nil
}

// List 按作者分页列出贡献文档。limit 被收敛到 [1,100]，默认 20；
// cursor 是上一页最后一条的 id。返回满页时 NextCursor 为本页最后一条
// 的 id，否则为 0（已到末尾）。
func (s *contributionService) List(ctx context.Context, authorID uint, limit int, cursor uint) (*ContributionPage, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	docs, err := s.docRepo.FindByAuthor(authorID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("查询贡献列表失败: %w", err)
	}

	page := &ContributionPage{Items: docs}
	if len(docs) == limit {
		page.NextCursor = docs[len(docs)-1].ID
	}
	return page, nil
}

// Get 查找作者本人的一份文档。
func (s *contributionService) Get(ctx context.Context, authorID, id uint) (*model.Document, error) {
	doc, err := s.docRepo.FindByIDAndAuthor(id, authorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询文档失败: %w", err)
	}
	return doc, nil
}

// Update 对作者本人的文档做部分更新并重建向量索引。
// 步骤严格有序：先提交文档行，再清除旧分块，最后写入新分块。旧分块的
// 清除先于新分块写入，不会出现两代分块并存的窗口。
func (s *contributionService) Update(ctx context.Context, authorID, id uint, input UpdateContributionInput) (*ContributionResult, error) {
	doc, err := s.Get(ctx, authorID, id)
	if err != nil {
		return nil, err
	}

	if err := applyUpdate(doc, input); err != nil {
		return nil, err
	}

	if err := s.docRepo.Update(doc); err != nil {
		return nil, fmt.Errorf("更新文档记录失败: %w", err)
	}

	chunks, err := s.ingestor.Reindex(ctx, doc, doc.Metadata, true)
	if err != nil {
		return nil, err
	}

	kafka.ProduceContributionEvent(kafka.ContributionEvent{
		Action:   "updated",
		DocID:    doc.ID,
		AuthorID: doc.AuthorID,
		Chunks:   chunks,
	})

	log.Infof("[ContributionService] 更新完成, doc_id: %d, chunks: %d", doc.ID, chunks)
	return &ContributionResult{ID: doc.ID, Chunks: chunks}, nil
}

// Delete 移除作者本人的文档及其全部向量分块。
// 先删向量再删文档行：向量删除失败则在删除行之前中止，避免留下永远
// 无法清理的孤儿向量；行删除失败时文档不可搜索但文本仍然完整。
func (s *contributionService) Delete(ctx context.Context, authorID, id uint) error {
	if _, err := s.Get(ctx, authorID, id); err != nil {
		return err
	}

	if err := s.ingestor.Deindex(id); err != nil {
		return fmt.Errorf("删除文档 %d 的向量分块失败: %w", id, err)
	}

	if err := s.docRepo.DeleteByIDAndAuthor(id, authorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("删除文档记录失败: %w", err)
	}

	kafka.ProduceContributionEvent(kafka.ContributionEvent{
		Action:   "deleted",
		DocID:    id,
		AuthorID: authorID,
	})

	log.Infof("[ContributionService] 删除完成, doc_id: %d", id)
	return nil
}

// validateCreate 在任何持久化动作之前校验创建负载，并补齐默认值。
func validateCreate(input *CreateContributionInput) error {
	if strings.TrimSpace(input.Text) == "" {
		return fmt.Errorf("%w: text 不能为空", ErrValidation)
	}
	if !input.Type.Valid() {
		return fmt.Errorf("%w: 非法的内容类型 %q", ErrValidation, input.Type)
	}
	if !input.LanguageKey.Valid() {
		return fmt.Errorf("%w: 非法的语言 %q", ErrValidation, input.LanguageKey)
	}
	if input.Visibility == "" {
		input.Visibility = model.VisibilityPrivate
	}
	if !input.Visibility.Valid() {
		return fmt.Errorf("%w: 非法的可见性 %q", ErrValidation, input.Visibility)
	}
	return nil
}

// applyUpdate 将部分更新合并到文档上，未提供的字段保持原值。
func applyUpdate(doc *model.Document, input UpdateContributionInput) error {
	if input.Text != nil {
		if strings.TrimSpace(*input.Text) == "" {
			return fmt.Errorf("%w: text 不能为空", ErrValidation)
		}
		doc.Text = *input.Text
	}
	if input.Type != nil {
		if !input.Type.Valid() {
			return fmt.Errorf("%w: 非法的内容类型 %q", ErrValidation, *input.Type)
		}
		doc.Type = *input.Type
	}
	if input.DomainKey != nil {
		doc.DomainKey = *input.DomainKey
	}
	if input.LanguageKey != nil {
		if !input.LanguageKey.Valid() {
			return fmt.Errorf("%w: 非法的语言 %q", ErrValidation, *input.LanguageKey)
		}
		doc.LanguageKey = *input.LanguageKey
	}
	if input.Source != nil {
		doc.Source = *input.Source
	}
	if input.Visibility != nil {
		if !input.Visibility.Valid() {
			return fmt.Errorf("%w: 非法的可见性 %q", ErrValidation, *input.Visibility)
		}
		doc.Visibility = *input.Visibility
	}
	if input.Extra != nil {
		doc.Metadata = *input.Extra
	}
	return nil
}
