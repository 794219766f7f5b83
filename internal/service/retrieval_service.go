package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"persona-craft-go/internal/model"
	"persona-craft-go/internal/repository"
	"persona-craft-go/pkg/embedding"
	"persona-craft-go/pkg/log"
)

// RetrievalFilters 是检索时的元数据过滤条件，空字符串表示不过滤。
// 所有条件为精确匹配，多个条件取交集。
type RetrievalFilters struct {
	DomainKey   string
	LanguageKey string
	AuthorID    string
}

// RetrievalService 接口定义了向量检索操作。
type RetrievalService interface {
	Retrieve(ctx context.Context, queryTerms []string, topK int, filters RetrievalFilters) ([]model.ScoredChunk, error)
}

type retrievalService struct {
	embedder  embedding.Client
	chunkRepo repository.ChunkRepository
}

// NewRetrievalService 创建一个新的 RetrievalService 实例。
func NewRetrievalService(embedder embedding.Client, chunkRepo repository.ChunkRepository) RetrievalService {
	return &retrievalService{embedder: embedder, chunkRepo: chunkRepo}
}

// Retrieve 将查询词合并为一个查询文本，做一次向量化后按相似度检索。
// topK <= 0 直接返回空结果，不调用向量化服务。
func (s *retrievalService) Retrieve(ctx context.Context, queryTerms []string, topK int, filters RetrievalFilters) ([]model.ScoredChunk, error) {
	if topK <= 0 {
		return []model.ScoredChunk{}, nil
	}

	query := strings.TrimSpace(strings.Join(queryTerms, " "))
	if query == "" {
		return nil, fmt.Errorf("%w: 查询内容不能为空", ErrValidation)
	}

	vector, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}

	conds := map[string]string{}
	if filters.DomainKey != "" {
		conds[model.MetaKeyDomainKey] = filters.DomainKey
	}
	if filters.LanguageKey != "" {
		conds[model.MetaKeyLanguageKey] = filters.LanguageKey
	}
	if filters.AuthorID != "" {
		conds[model.MetaKeyAuthorID] = filters.AuthorID
	}

	chunks, err := s.chunkRepo.Search(ctx, vector, topK, conds)
	if err != nil {
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}

	sortScored(chunks)

	log.Infof("[RetrievalService] 检索完成, query_len: %d, hits: %d", len(query), len(chunks))
	return chunks, nil
}

// sortScored 对检索结果做稳定排序：分数降序，同分按 chunk_index 升序，
// 再按 doc_id 升序，保证同一查询的结果顺序确定。
func sortScored(chunks []model.ScoredChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		ci, cj := chunks[i].ChunkIndex(), chunks[j].ChunkIndex()
		if ci != cj {
			return ci < cj
		}
		return lessDocID(chunks[i].DocID(), chunks[j].DocID())
	})
}

// lessDocID 比较两个 doc_id，能解析为数字时按数值比较，否则按字符串。
func lessDocID(a, b string) bool {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
