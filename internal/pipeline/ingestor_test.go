package pipeline

import (
	"context"
	"errors"
	"testing"

	"persona-craft-go/internal/model"

	"github.com/stretchr/testify/require"
)

// fakeChunkRepo 记录调用顺序，用于验证删除先于写入。
type fakeChunkRepo struct {
	ops       []string
	stored    []model.ChunkPayload
	deleted   []string
	addErr    error
	deleteErr error
}

func (f *fakeChunkRepo) AddDocuments(ctx context.Context, chunks []model.ChunkPayload) error {
	f.ops = append(f.ops, "add")
	if f.addErr != nil {
		return f.addErr
	}
	f.stored = append(f.stored, chunks...)
	return nil
}

func (f *fakeChunkRepo) DeleteByDocID(docID string) error {
	f.ops = append(f.ops, "delete")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, docID)
	return nil
}

func (f *fakeChunkRepo) Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]model.ScoredChunk, error) {
	return nil, nil
}

func testDoc() *model.Document {
	return &model.Document{
		ID:          42,
		Text:        "一段足够用于摄取测试的贡献文本。",
		Type:        model.DocumentTypeSurvey,
		DomainKey:   "coffee",
		LanguageKey: model.LanguageID,
		AuthorID:    7,
		Visibility:  model.VisibilityPrivate,
	}
}

func TestReindexCreatePathSkipsDelete(t *testing.T) {
	repo := &fakeChunkRepo{}
	ing := NewIngestor(NewSplitter(100, 20), repo)

	n, err := ing.Reindex(context.Background(), testDoc(), nil, false)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{"add"}, repo.ops)
}

func TestReindexRefreshDeletesBeforeAdd(t *testing.T) {
	repo := &fakeChunkRepo{}
	ing := NewIngestor(NewSplitter(100, 20), repo)

	_, err := ing.Reindex(context.Background(), testDoc(), nil, true)
	require.NoError(t, err)
	require.Equal(t, []string{"delete", "add"}, repo.ops)
	require.Equal(t, []string{"42"}, repo.deleted)
}

func TestReindexRefreshAbortsWhenDeleteFails(t *testing.T) {
	repo := &fakeChunkRepo{deleteErr: errors.New("db down")}
	ing := NewIngestor(NewSplitter(100, 20), repo)

	_, err := ing.Reindex(context.Background(), testDoc(), nil, true)
	require.Error(t, err)
	// 旧分块删除失败时不能写入新分块
	require.Equal(t, []string{"delete"}, repo.ops)
}

func TestReindexPropagatesAddError(t *testing.T) {
	repo := &fakeChunkRepo{addErr: errors.New("embedding unavailable")}
	ing := NewIngestor(NewSplitter(100, 20), repo)

	n, err := ing.Reindex(context.Background(), testDoc(), nil, false)
	require.Error(t, err)
	require.Zero(t, n)
}

func TestReindexEmptyTextProducesNoChunks(t *testing.T) {
	repo := &fakeChunkRepo{}
	ing := NewIngestor(NewSplitter(100, 20), repo)

	doc := testDoc()
	doc.Text = "   "
	n, err := ing.Reindex(context.Background(), doc, nil, false)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, repo.ops)
}

func TestReindexAttachesMetadataInOrder(t *testing.T) {
	repo := &fakeChunkRepo{}
	ing := NewIngestor(NewSplitter(50, 10), repo)

	doc := testDoc()
	doc.Text = "第一句话在这里结束。第二句话也足够长，必须切到下一个分块里去，补齐足够的长度让切分发生。第三句继续延长文本，确保至少产生两个分块。"
	_, err := ing.Reindex(context.Background(), doc, nil, false)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(repo.stored), 2)

	for i, chunk := range repo.stored {
		require.Equal(t, "42", chunk.Metadata.GetString(model.MetaKeyDocID))
		require.Equal(t, "7", chunk.Metadata.GetString(model.MetaKeyAuthorID))
		require.Equal(t, i, chunk.Metadata.GetInt(model.MetaKeyChunkIndex))
	}
}

func TestBuildChunkMetadataDefaults(t *testing.T) {
	doc := testDoc()
	meta := BuildChunkMetadata(doc, nil, 3)

	require.Equal(t, "42", meta.GetString(model.MetaKeyDocID))
	require.Equal(t, "survey", meta.GetString(model.MetaKeyType))
	require.Equal(t, "coffee", meta.GetString(model.MetaKeyDomainKey))
	require.Equal(t, "id", meta.GetString(model.MetaKeyLanguageKey))
	require.Equal(t, "7", meta.GetString(model.MetaKeyAuthorID))
	require.Equal(t, model.DefaultSource, meta.GetString(model.MetaKeySource))
	require.Equal(t, "private", meta.GetString(model.MetaKeyVisibility))
	require.Equal(t, 3, meta.GetInt(model.MetaKeyChunkIndex))
}

func TestBuildChunkMetadataProtectsReservedKeys(t *testing.T) {
	doc := testDoc()
	extra := model.JSONMap{
		model.MetaKeyDocID:      "999",
		model.MetaKeyAuthorID:   "999",
		model.MetaKeyChunkIndex: 999,
		"campaign":              "q3-launch",
	}
	meta := BuildChunkMetadata(doc, extra, 0)

	require.Equal(t, "42", meta.GetString(model.MetaKeyDocID))
	require.Equal(t, "7", meta.GetString(model.MetaKeyAuthorID))
	require.Equal(t, 0, meta.GetInt(model.MetaKeyChunkIndex))
	require.Equal(t, "q3-launch", meta.GetString("campaign"))
}

func TestBuildChunkMetadataVisibilityOverride(t *testing.T) {
	// visibility 是唯一允许 extra 覆盖的结构化字段
	doc := testDoc()
	extra := model.JSONMap{model.MetaKeyVisibility: "public"}
	meta := BuildChunkMetadata(doc, extra, 0)

	require.Equal(t, "public", meta.GetString(model.MetaKeyVisibility))
}

func TestBuildChunkMetadataExplicitSource(t *testing.T) {
	doc := testDoc()
	doc.Source = "report.pdf"
	meta := BuildChunkMetadata(doc, nil, 0)

	require.Equal(t, "report.pdf", meta.GetString(model.MetaKeySource))
}
