package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"persona-craft-go/internal/model"
	"persona-craft-go/pkg/embedding"
	"persona-craft-go/pkg/log"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// ChunkRepository 是向量存储的适配器接口，底层是带 vector 列的
// document_chunks 表（pgvector）。
type ChunkRepository interface {
	// AddDocuments 对每个分块做向量化，并按输入顺序批量写入。
	// 插入顺序保持 chunk_index 递增，检索的平分决胜依赖这一点。
	AddDocuments(ctx context.Context, chunks []model.ChunkPayload) error
	// DeleteByDocID 删除元数据 doc_id 等于给定值的所有行（字符串等值比较）。
	// 没有命中任何行是正常情况，不是错误。
	DeleteByDocID(docID string) error
	// Search 按余弦相似度检索 topK 个分块，filters 里的每个键都要求
	// 元数据精确匹配。
	Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]model.ScoredChunk, error)
}

// chunkRepository 是 ChunkRepository 接口在 GORM + pgvector 上的实现。
type chunkRepository struct {
	db              *gorm.DB
	embeddingClient embedding.Client
}

// NewChunkRepository 创建一个新的 ChunkRepository 实例。
func NewChunkRepository(db *gorm.DB, embeddingClient embedding.Client) ChunkRepository {
	return &chunkRepository{db: db, embeddingClient: embeddingClient}
}

// AddDocuments 向量化并持久化一批分块。
func (r *chunkRepository) AddDocuments(ctx context.Context, chunks []model.ChunkPayload) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := r.embeddingClient.CreateEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("分块向量化失败: %w", err)
	}

	rows := make([]*model.DocumentChunk, len(chunks))
	for i, chunk := range chunks {
		rows[i] = &model.DocumentChunk{
			Embedding: pgvector.NewVector(vectors[i]),
			Content:   chunk.Content,
			Metadata:  chunk.Metadata,
		}
	}

	if err := r.db.WithContext(ctx).CreateInBatches(rows, 100).Error; err != nil {
		return fmt.Errorf("批量写入向量分块失败: %w", err)
	}
	log.Infof("[ChunkRepository] 成功写入 %d 个向量分块", len(rows))
	return nil
}

// DeleteByDocID 按元数据中的 doc_id 删除所有相关分块。
func (r *chunkRepository) DeleteByDocID(docID string) error {
	return r.db.Where("metadata->>'doc_id' = ?", docID).Delete(&model.DocumentChunk{}).Error
}

// Search 执行向量相似度检索。
// score = 1 - 余弦距离；过滤键按固定顺序拼接以产生可复现的 SQL。
func (r *chunkRepository) Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]model.ScoredChunk, error) {
	if topK <= 0 {
		return []model.ScoredChunk{}, nil
	}

	queryVector := pgvector.NewVector(vector)
	sql := "SELECT id, content, metadata, 1 - (embedding <=> ?) AS score FROM document_chunks"
	args := []interface{}{queryVector}

	if len(filters) > 0 {
		keys := make([]string, 0, len(filters))
		for k := range filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		conds := make([]string, 0, len(keys))
		for _, k := range keys {
			conds = append(conds, "metadata->>? = ?")
			args = append(args, k, filters[k])
		}
		sql += " WHERE " + strings.Join(conds, " AND ")
	}

	sql += " ORDER BY embedding <=> ? LIMIT ?"
	args = append(args, queryVector, topK)

	var results []model.ScoredChunk
	if err := r.db.WithContext(ctx).Raw(sql, args...).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}
	return results, nil
}
