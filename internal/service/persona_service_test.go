package service

import (
	"context"
	"errors"
	"testing"

	"persona-craft-go/internal/config"
	"persona-craft-go/internal/model"
	"persona-craft-go/pkg/llm"

	"github.com/stretchr/testify/require"
)

// fakeRetrievalService 记录最近一次检索调用的参数。
type fakeRetrievalService struct {
	called   bool
	lastTopK int
}

func (f *fakeRetrievalService) Retrieve(ctx context.Context, terms []string, topK int, filters RetrievalFilters) ([]model.ScoredChunk, error) {
	f.called = true
	f.lastTopK = topK
	return []model.ScoredChunk{}, nil
}

// errStopGeneration 让生成在检索之后、写入 WebSocket 之前中断，
// 这样测试不需要真实连接。
var errStopGeneration = errors.New("generation stopped")

type fakeLLMClient struct{}

func (f *fakeLLMClient) StreamChatMessages(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams, writer llm.MessageWriter) error {
	return errStopGeneration
}

type fakePersonaRepo struct{}

func (f *fakePersonaRepo) Create(persona *model.Persona) error { return nil }
func (f *fakePersonaRepo) FindByIDAndAuthor(id, authorID uint) (*model.Persona, error) {
	return nil, errors.New("not implemented")
}
func (f *fakePersonaRepo) FindByAuthor(authorID uint) ([]model.Persona, error) {
	return nil, errors.New("not implemented")
}

type fakeGenerationRepo struct{}

func (f *fakeGenerationRepo) GetOrCreateSessionID(ctx context.Context, userID uint) (string, error) {
	return "session", nil
}
func (f *fakeGenerationRepo) GetHistory(ctx context.Context, sessionID string) ([]model.GenerationMessage, error) {
	return []model.GenerationMessage{}, nil
}
func (f *fakeGenerationRepo) UpdateHistory(ctx context.Context, sessionID string, messages []model.GenerationMessage) error {
	return nil
}

func newTestPersonaService(retrieval *fakeRetrievalService) PersonaService {
	return NewPersonaService(retrieval, &fakeLLMClient{}, &fakePersonaRepo{}, &fakeGenerationRepo{})
}

func generateRequest(topK *int) GenerateRequest {
	return GenerateRequest{
		Query:       "这位用户的咖啡偏好是什么？",
		DomainKey:   "coffee",
		LanguageKey: model.LanguageID,
		TopK:        topK,
	}
}

func TestStreamGenerateTopKZeroPassesThrough(t *testing.T) {
	config.Conf.RAG.TopK = 5
	retrieval := &fakeRetrievalService{}
	svc := newTestPersonaService(retrieval)

	zero := 0
	err := svc.StreamGenerate(context.Background(), generateRequest(&zero), &model.User{ID: 1}, nil)
	require.ErrorIs(t, err, errStopGeneration)

	// 显式传 0 不允许被改写成默认值，检索层据此跳过向量查询
	require.True(t, retrieval.called)
	require.Equal(t, 0, retrieval.lastTopK)
}

func TestStreamGenerateTopKDefaultsWhenAbsent(t *testing.T) {
	config.Conf.RAG.TopK = 5
	retrieval := &fakeRetrievalService{}
	svc := newTestPersonaService(retrieval)

	err := svc.StreamGenerate(context.Background(), generateRequest(nil), &model.User{ID: 1}, nil)
	require.ErrorIs(t, err, errStopGeneration)
	require.Equal(t, 5, retrieval.lastTopK)
}

func TestStreamGenerateEmptyQuery(t *testing.T) {
	retrieval := &fakeRetrievalService{}
	svc := newTestPersonaService(retrieval)

	err := svc.StreamGenerate(context.Background(), GenerateRequest{Query: "  "}, &model.User{ID: 1}, nil)
	require.ErrorIs(t, err, ErrValidation)
	require.False(t, retrieval.called)
}
