package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"persona-craft-go/internal/model"
	"persona-craft-go/internal/pipeline"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeDocRepo 是 DocumentRepository 的内存实现。
type fakeDocRepo struct {
	docs   map[uint]*model.Document
	nextID uint
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: map[uint]*model.Document{}, nextID: 1}
}

func (f *fakeDocRepo) Create(doc *model.Document) error {
	doc.ID = f.nextID
	f.nextID++
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDocRepo) FindByIDAndAuthor(id, authorID uint) (*model.Document, error) {
	doc, ok := f.docs[id]
	if !ok || doc.AuthorID != authorID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeDocRepo) FindByAuthor(authorID uint, afterID uint, limit int) ([]model.Document, error) {
	var ids []uint
	for id, doc := range f.docs {
		if doc.AuthorID == authorID && id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []model.Document
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		out = append(out, *f.docs[id])
	}
	return out, nil
}

func (f *fakeDocRepo) Update(doc *model.Document) error {
	if _, ok := f.docs[doc.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDocRepo) DeleteByIDAndAuthor(id, authorID uint) error {
	doc, ok := f.docs[id]
	if !ok || doc.AuthorID != authorID {
		return gorm.ErrRecordNotFound
	}
	delete(f.docs, id)
	return nil
}

// fakeVectorRepo 是 ChunkRepository 的内存实现，按 doc_id 维护分块。
type fakeVectorRepo struct {
	chunks    []model.ChunkPayload
	deleteErr error
	addErr    error
}

func (f *fakeVectorRepo) AddDocuments(ctx context.Context, chunks []model.ChunkPayload) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeVectorRepo) DeleteByDocID(docID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.chunks[:0]
	for _, c := range f.chunks {
		if c.Metadata.GetString(model.MetaKeyDocID) != docID {
			kept = append(kept, c)
		}
	}
	f.chunks = kept
	return nil
}

func (f *fakeVectorRepo) Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]model.ScoredChunk, error) {
	return nil, nil
}

func (f *fakeVectorRepo) chunksFor(docID string) []model.ChunkPayload {
	var out []model.ChunkPayload
	for _, c := range f.chunks {
		if c.Metadata.GetString(model.MetaKeyDocID) == docID {
			out = append(out, c)
		}
	}
	return out
}

func newTestService(vectorRepo *fakeVectorRepo) (ContributionService, *fakeDocRepo) {
	docRepo := newFakeDocRepo()
	ingestor := pipeline.NewIngestor(pipeline.NewSplitter(100, 20), vectorRepo)
	return NewContributionService(docRepo, ingestor), docRepo
}

func validInput(authorID uint) CreateContributionInput {
	return CreateContributionInput{
		Text:        "一段关于咖啡偏好的访谈记录，受访者更喜欢手冲而不是意式浓缩。",
		Type:        model.DocumentTypeInterview,
		DomainKey:   "coffee",
		LanguageKey: model.LanguageID,
		AuthorID:    authorID,
	}
}

func TestCreateContribution(t *testing.T) {
	vectorRepo := &fakeVectorRepo{}
	svc, docRepo := newTestService(vectorRepo)

	result, err := svc.Create(context.Background(), validInput(1))
	require.NoError(t, err)
	require.NotZero(t, result.ID)
	require.Equal(t, 1, result.Chunks)
	require.Len(t, docRepo.docs, 1)
	require.Len(t, vectorRepo.chunks, 1)
}

func TestCreateValidation(t *testing.T) {
	svc, docRepo := newTestService(&fakeVectorRepo{})

	cases := []func(*CreateContributionInput){
		func(in *CreateContributionInput) { in.Text = "   " },
		func(in *CreateContributionInput) { in.Type = "poem" },
		func(in *CreateContributionInput) { in.LanguageKey = "fr" },
		func(in *CreateContributionInput) { in.Visibility = "internal" },
	}
	for _, mutate := range cases {
		in := validInput(1)
		mutate(&in)
		_, err := svc.Create(context.Background(), in)
		require.ErrorIs(t, err, ErrValidation)
	}
	// 校验失败不允许产生任何持久化副作用
	require.Empty(t, docRepo.docs)
}

func TestCreateKeepsDocumentWhenIndexingFails(t *testing.T) {
	// 文本先提交：向量阶段失败时错误向上传播，但文档行保留
	vectorRepo := &fakeVectorRepo{addErr: errors.New("embedding unavailable")}
	svc, docRepo := newTestService(vectorRepo)

	_, err := svc.Create(context.Background(), validInput(1))
	require.Error(t, err)
	require.Len(t, docRepo.docs, 1)
	require.Empty(t, vectorRepo.chunks)
}

func TestGetOwnershipIsolation(t *testing.T) {
	svc, _ := newTestService(&fakeVectorRepo{})

	result, err := svc.Create(context.Background(), validInput(1))
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), 2, result.ID)
	require.ErrorIs(t, err, ErrNotFound)

	doc, err := svc.Get(context.Background(), 1, result.ID)
	require.NoError(t, err)
	require.Equal(t, result.ID, doc.ID)
}

func TestUpdateMergeSemantics(t *testing.T) {
	vectorRepo := &fakeVectorRepo{}
	svc, _ := newTestService(vectorRepo)

	created, err := svc.Create(context.Background(), validInput(1))
	require.NoError(t, err)

	newDomain := "tea"
	_, err = svc.Update(context.Background(), 1, created.ID, UpdateContributionInput{
		DomainKey: &newDomain,
	})
	require.NoError(t, err)

	doc, err := svc.Get(context.Background(), 1, created.ID)
	require.NoError(t, err)
	// 未提供的字段保持原值
	require.Equal(t, "tea", doc.DomainKey)
	require.Equal(t, model.DocumentTypeInterview, doc.Type)
	require.Equal(t, validInput(1).Text, doc.Text)

	// 重建后的分块携带新的 domain_key
	chunks := vectorRepo.chunksFor("1")
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		require.Equal(t, "tea", c.Metadata.GetString(model.MetaKeyDomainKey))
	}
}

func TestUpdateReplacesStaleChunks(t *testing.T) {
	vectorRepo := &fakeVectorRepo{}
	svc, _ := newTestService(vectorRepo)

	created, err := svc.Create(context.Background(), validInput(1))
	require.NoError(t, err)

	newText := "完全替换后的文本内容，之前的分块必须全部消失。"
	_, err = svc.Update(context.Background(), 1, created.ID, UpdateContributionInput{Text: &newText})
	require.NoError(t, err)

	chunks := vectorRepo.chunksFor("1")
	require.Len(t, chunks, 1)
	require.Equal(t, newText, chunks[0].Content)
}

func TestUpdateSameTextKeepsChunkCount(t *testing.T) {
	vectorRepo := &fakeVectorRepo{}
	svc, _ := newTestService(vectorRepo)

	// 超过单个分块大小的文本，保证重建涉及多个分块
	text := strings.Repeat("受访者每天早上都会先研磨咖啡豆，再用手冲壶冲泡一杯浅焙咖啡。", 8)
	in := validInput(1)
	in.Text = text
	created, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	require.Greater(t, created.Chunks, 1)

	// 用完全相同的文本连续更新两次，分块数不允许漂移
	for i := 0; i < 2; i++ {
		result, err := svc.Update(context.Background(), 1, created.ID, UpdateContributionInput{Text: &text})
		require.NoError(t, err)
		require.Equal(t, created.Chunks, result.Chunks)
	}

	chunks := vectorRepo.chunksFor(fmt.Sprint(created.ID))
	require.Len(t, chunks, created.Chunks)
}

func TestUpdateNotFound(t *testing.T) {
	svc, _ := newTestService(&fakeVectorRepo{})

	text := "新文本"
	_, err := svc.Update(context.Background(), 1, 999, UpdateContributionInput{Text: &text})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesDocumentAndChunks(t *testing.T) {
	vectorRepo := &fakeVectorRepo{}
	svc, docRepo := newTestService(vectorRepo)

	created, err := svc.Create(context.Background(), validInput(1))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), 1, created.ID))
	require.Empty(t, docRepo.docs)
	require.Empty(t, vectorRepo.chunks)
}

func TestDeleteOwnershipIsolation(t *testing.T) {
	svc, docRepo := newTestService(&fakeVectorRepo{})

	created, err := svc.Create(context.Background(), validInput(1))
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(context.Background(), 2, created.ID), ErrNotFound)
	require.Len(t, docRepo.docs, 1)
}

func TestDeleteAbortsWhenVectorDeleteFails(t *testing.T) {
	// 向量删除失败时文档行必须保留，避免产生永远无法清理的孤儿向量
	vectorRepo := &fakeVectorRepo{}
	svc, docRepo := newTestService(vectorRepo)

	created, err := svc.Create(context.Background(), validInput(1))
	require.NoError(t, err)

	vectorRepo.deleteErr = errors.New("db down")
	require.Error(t, svc.Delete(context.Background(), 1, created.ID))
	require.Len(t, docRepo.docs, 1)
}

func TestListPagination(t *testing.T) {
	svc, _ := newTestService(&fakeVectorRepo{})

	for i := 0; i < 5; i++ {
		_, err := svc.Create(context.Background(), validInput(1))
		require.NoError(t, err)
	}
	// 另一个作者的文档不出现在列表里
	_, err := svc.Create(context.Background(), validInput(2))
	require.NoError(t, err)

	var seen []uint
	var cursor uint
	for {
		page, err := svc.List(context.Background(), 1, 2, cursor)
		require.NoError(t, err)
		for _, doc := range page.Items {
			require.Equal(t, uint(1), doc.AuthorID)
			seen = append(seen, doc.ID)
		}
		if page.NextCursor == 0 {
			break
		}
		cursor = page.NextCursor
	}

	// 翻页结果不重不漏，且按 id 升序
	require.Len(t, seen, 5)
	require.True(t, sort.SliceIsSorted(seen, func(i, j int) bool { return seen[i] < seen[j] }))
}

func TestListLimitClamping(t *testing.T) {
	svc, _ := newTestService(&fakeVectorRepo{})

	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), validInput(1))
		require.NoError(t, err)
	}

	// limit<=0 回退默认值 20
	page, err := svc.List(context.Background(), 1, 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	require.Zero(t, page.NextCursor)

	// 超大 limit 收敛到 100，不报错
	page, err = svc.List(context.Background(), 1, 1000, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
}
