package model

import "github.com/pgvector/pgvector-go"

// 分块元数据中的保留键。doc_id 存为字符串：上游 id 可能是数值或大整数类型，
// 删除过滤必须按字符串等值比较。
const (
	MetaKeyDocID       = "doc_id"
	MetaKeyType        = "type"
	MetaKeyDomainKey   = "domain_key"
	MetaKeyLanguageKey = "language_key"
	MetaKeyAuthorID    = "author_id"
	MetaKeySource      = "source"
	MetaKeyVisibility  = "visibility"
	MetaKeyChunkIndex  = "chunk_index"
)

// DefaultSource 是贡献内容未指定来源时写入元数据的默认值。
const DefaultSource = "contribution"

// DocumentChunk 对应于数据库中的 document_chunks 表。
// 它是派生的可丢弃数据：对所属文档的引用只通过 metadata 里的 doc_id 字段
// 弱关联，不建外键；每次重新摄取时整体删除重建，从不原地更新。
type DocumentChunk struct {
	ID        uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	Embedding pgvector.Vector `gorm:"type:vector(1536)" json:"-"`
	Content   string          `gorm:"type:text;not null" json:"content"`
	Metadata  JSONMap         `gorm:"type:jsonb;not null" json:"metadata"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DocumentChunk) TableName() string {
	return "document_chunks"
}

// ChunkPayload 是待嵌入入库的一个分块（文本 + 元数据）。
type ChunkPayload struct {
	Content  string  `json:"content"`
	Metadata JSONMap `json:"metadata"`
}

// ScoredChunk 是相似度检索命中的一个分块。
type ScoredChunk struct {
	ID       uint    `gorm:"column:id" json:"id"`
	Content  string  `gorm:"column:content" json:"content"`
	Metadata JSONMap `gorm:"column:metadata" json:"metadata"`
	Score    float64 `gorm:"column:score" json:"score"`
}

// DocID 返回分块元数据里的所属文档 id（字符串形式）。
func (c ScoredChunk) DocID() string {
	return c.Metadata.GetString(MetaKeyDocID)
}

// ChunkIndex 返回分块在切分输出中的序号。
func (c ScoredChunk) ChunkIndex() int {
	return c.Metadata.GetInt(MetaKeyChunkIndex)
}
