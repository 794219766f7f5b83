package model

import "time"

// Persona 对应于数据库中的 personas 表，保存一次生成完成的人格画像文档。
type Persona struct {
	ID          uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	AuthorID    uint        `gorm:"index;not null" json:"authorId"`
	Title       string      `gorm:"type:varchar(255)" json:"title"`
	Description string      `gorm:"type:text" json:"description"`
	Content     string      `gorm:"type:text;not null" json:"content"`
	DomainKey   string      `gorm:"type:varchar(100)" json:"domainKey"`
	LanguageKey LanguageKey `gorm:"type:varchar(10)" json:"languageKey"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Persona) TableName() string {
	return "personas"
}

// GenerationMessage 代表存储在 Redis 中的一条生成会话消息。
type GenerationMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
