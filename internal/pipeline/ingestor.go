package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"persona-craft-go/internal/model"
	"persona-craft-go/internal/repository"
	"persona-craft-go/pkg/log"
)

// Ingestor 封装了文档摄取的向量阶段。文档行本身由 service 层先行提交，
// 这里只负责后续严格顺序的阶段：清除旧分块（更新路径）→ 切分 →
// 组装元数据 → 向量化入库。
//
// 文本提交即权威：向量阶段失败时文档文本保持完整正确，只留下索引缺失
// 的降级状态，重跑一次同文本的更新即可恢复（旧分块总是先于新分块删除，
// 重复摄取同一文档是幂等的）。
type Ingestor struct {
	splitter  *Splitter
	chunkRepo repository.ChunkRepository
}

// NewIngestor 创建一个新的 Ingestor 实例。
func NewIngestor(splitter *Splitter, chunkRepo repository.ChunkRepository) *Ingestor {
	return &Ingestor{splitter: splitter, chunkRepo: chunkRepo}
}

// Reindex 为一份文档（重新）建立向量索引，返回产生的分块数。
// refresh 为 true 表示更新路径：先删除该文档的全部旧分块，再写入新分块，
// 避免新旧两代分块并存污染检索。创建路径不存在旧分块，跳过删除。
func (p *Ingestor) Reindex(ctx context.Context, doc *model.Document, extra model.JSONMap, refresh bool) (int, error) {
	docID := strconv.FormatUint(uint64(doc.ID), 10)
	log.Infof("[Ingestor] 开始索引文档, doc_id: %s, refresh: %v", docID, refresh)

	if refresh {
		if err := p.chunkRepo.DeleteByDocID(docID); err != nil {
			return 0, fmt.Errorf("清除文档 %s 的旧向量分块失败: %w", docID, err)
		}
	}

	chunks := p.splitter.Split(doc.Text)
	if len(chunks) == 0 {
		log.Warnf("[Ingestor] 文档 %s 未产生任何分块", docID)
		return 0, nil
	}

	payloads := make([]model.ChunkPayload, len(chunks))
	for i, content := range chunks {
		payloads[i] = model.ChunkPayload{
			Content:  content,
			Metadata: BuildChunkMetadata(doc, extra, i),
		}
	}

	if err := p.chunkRepo.AddDocuments(ctx, payloads); err != nil {
		// 部分索引状态：文档行已是权威数据，只有索引缺失，可重跑恢复
		log.Warnf("[Ingestor] 文档 %s 向量写入失败，文本保持完整，索引待重建: %v", docID, err)
		return 0, err
	}

	log.Infof("[Ingestor] 文档 %s 索引完成, 共 %d 个分块", docID, len(chunks))
	return len(chunks), nil
}

// Deindex 删除文档的全部向量分块。没有分块可删不是错误。
func (p *Ingestor) Deindex(docID uint) error {
	return p.chunkRepo.DeleteByDocID(strconv.FormatUint(uint64(docID), 10))
}

// reservedMetaKeys 是调用方 extra 不允许覆盖的元数据键。
// visibility 是唯一例外：extra 里的 visibility 有意优先于文档级可见性。
var reservedMetaKeys = map[string]bool{
	model.MetaKeyDocID:       true,
	model.MetaKeyType:        true,
	model.MetaKeyDomainKey:   true,
	model.MetaKeyLanguageKey: true,
	model.MetaKeyAuthorID:    true,
	model.MetaKeySource:      true,
	model.MetaKeyChunkIndex:  true,
}

// BuildChunkMetadata 组装单个分块的元数据：先写入文档的结构化字段，
// 再叠加调用方的 extra（保留键受保护），最后固定 chunk_index。
func BuildChunkMetadata(doc *model.Document, extra model.JSONMap, chunkIndex int) model.JSONMap {
	source := doc.Source
	if source == "" {
		source = model.DefaultSource
	}

	meta := model.JSONMap{
		model.MetaKeyDocID:       strconv.FormatUint(uint64(doc.ID), 10),
		model.MetaKeyType:        string(doc.Type),
		model.MetaKeyDomainKey:   doc.DomainKey,
		model.MetaKeyLanguageKey: string(doc.LanguageKey),
		model.MetaKeyAuthorID:    strconv.FormatUint(uint64(doc.AuthorID), 10),
		model.MetaKeySource:      source,
		model.MetaKeyVisibility:  string(doc.Visibility),
	}

	for k, v := range extra {
		if reservedMetaKeys[k] {
			continue
		}
		meta[k] = v
	}

	// chunk_index 最后写入，任何 extra 都不能覆盖它
	meta[model.MetaKeyChunkIndex] = chunkIndex
	return meta
}
