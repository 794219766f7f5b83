package repository

import (
	"persona-craft-go/internal/model"

	"gorm.io/gorm"
)

// PersonaRepository 接口定义了生成结果（personas 表）的持久化操作。
type PersonaRepository interface {
	Create(persona *model.Persona) error
	FindByIDAndAuthor(id, authorID uint) (*model.Persona, error)
	FindByAuthor(authorID uint) ([]model.Persona, error)
}

type personaRepository struct {
	db *gorm.DB
}

// NewPersonaRepository 创建一个新的 PersonaRepository 实例。
func NewPersonaRepository(db *gorm.DB) PersonaRepository {
	return &personaRepository{db: db}
}

// Create 保存一份生成完成的人格画像文档。
func (r *personaRepository) Create(persona *model.Persona) error {
	return r.db.Create(persona).Error
}

// FindByIDAndAuthor 按 ID 与作者查找一份画像。
func (r *personaRepository) FindByIDAndAuthor(id, authorID uint) (*model.Persona, error) {
	var persona model.Persona
	err := r.db.Where("id = ? AND author_id = ?", id, authorID).First(&persona).Error
	if err != nil {
		return nil, err
	}
	return &persona, nil
}

// FindByAuthor 按作者查找其全部画像，按创建时间倒序。
func (r *personaRepository) FindByAuthor(authorID uint) ([]model.Persona, error) {
	var personas []model.Persona
	err := r.db.Where("author_id = ?", authorID).Order("created_at desc").Find(&personas).Error
	return personas, err
}
