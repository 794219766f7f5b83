// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// DocumentType 是贡献文档的内容类型枚举。
type DocumentType string

const (
	DocumentTypeSurvey    DocumentType = "survey"
	DocumentTypeInterview DocumentType = "interview"
	DocumentTypeReview    DocumentType = "review"
	DocumentTypeDoc       DocumentType = "doc"
)

// Valid 判断内容类型是否属于枚举值。
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypeSurvey, DocumentTypeInterview, DocumentTypeReview, DocumentTypeDoc:
		return true
	}
	return false
}

// LanguageKey 是文档语言的枚举。
type LanguageKey string

const (
	LanguageEN LanguageKey = "en"
	LanguageID LanguageKey = "id"
)

// Valid 判断语言键是否属于枚举值，空值表示未指定。
func (l LanguageKey) Valid() bool {
	switch l {
	case "", LanguageEN, LanguageID:
		return true
	}
	return false
}

// Visibility 表示文档的可见性。
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Valid 判断可见性是否属于枚举值。
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Document 对应于数据库中的 documents 表，是贡献内容的系统记录（system of record）。
// 分块/向量数据全部由它派生，可随时按 doc_id 重建。
type Document struct {
	ID          uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	Text        string       `gorm:"type:text;not null" json:"text"`
	Type        DocumentType `gorm:"type:varchar(20);not null" json:"type"`
	DomainKey   string       `gorm:"type:varchar(100)" json:"domainKey"`
	LanguageKey LanguageKey  `gorm:"type:varchar(10)" json:"languageKey"`
	// AuthorID 为 0 表示匿名摄取；带作者的管理操作始终按 author_id 过滤。
	AuthorID   uint       `gorm:"index" json:"authorId"`
	Source     string     `gorm:"type:varchar(255)" json:"source"`
	Metadata   JSONMap    `gorm:"type:jsonb" json:"metadata"`
	Visibility Visibility `gorm:"type:varchar(10);not null;default:private" json:"visibility"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}
