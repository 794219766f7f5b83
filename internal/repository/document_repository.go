// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"persona-craft-go/internal/model"

	"gorm.io/gorm"
)

// DocumentRepository 接口定义了贡献文档（系统记录表）的持久化操作。
// 读取/更新/删除都按作者过滤：只有作者本人能看到、修改或移除自己的文档。
// 目标行不存在或不属于调用者时返回 gorm.ErrRecordNotFound，由 service 层
// 转换为类型化的 NotFound 错误。
type DocumentRepository interface {
	Create(doc *model.Document) error
	FindByIDAndAuthor(id, authorID uint) (*model.Document, error)
	FindByAuthor(authorID uint, afterID uint, limit int) ([]model.Document, error)
	Update(doc *model.Document) error
	DeleteByIDAndAuthor(id, authorID uint) error
}

// documentRepository 是 DocumentRepository 接口的 GORM 实现。
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create 在数据库中创建一条新的文档记录。
func (r *documentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

// FindByIDAndAuthor 根据文档 ID 和作者 ID 查找一条文档记录。
func (r *documentRepository) FindByIDAndAuthor(id, authorID uint) (*model.Document, error) {
	var doc model.Document
	err := r.db.Where("id = ? AND author_id = ?", id, authorID).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByAuthor 按作者分页查找文档，游标为上一页最后一条的 id，按 id 升序返回。
func (r *documentRepository) FindByAuthor(authorID uint, afterID uint, limit int) ([]model.Document, error) {
	var docs []model.Document
	query := r.db.Where("author_id = ?", authorID)
	if afterID > 0 {
		query = query.Where("id > ?", afterID)
	}
	err := query.Order("id asc").Limit(limit).Find(&docs).Error
	return docs, err
}

// Update 保存一条已存在的文档记录。
func (r *documentRepository) Update(doc *model.Document) error {
	return r.db.Save(doc).Error
}

// DeleteByIDAndAuthor 删除作者本人的一条文档记录。
// 没有命中任何行时返回 gorm.ErrRecordNotFound。
func (r *documentRepository) DeleteByIDAndAuthor(id, authorID uint) error {
	res := r.db.Where("id = ? AND author_id = ?", id, authorID).Delete(&model.Document{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
