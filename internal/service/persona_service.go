package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"persona-craft-go/internal/config"
	"persona-craft-go/internal/model"
	"persona-craft-go/internal/repository"
	"persona-craft-go/pkg/llm"
	"persona-craft-go/pkg/log"

	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

// GenerateRequest 是一次画像生成请求。
// TopK 为 nil 表示调用方未指定，使用配置默认值；显式传 0 表示本轮不做检索。
type GenerateRequest struct {
	Query       string
	Title       string
	DomainKey   string
	LanguageKey model.LanguageKey
	TopK        *int
}

// PersonaService 定义了画像生成与查询的接口。
type PersonaService interface {
	StreamGenerate(ctx context.Context, req GenerateRequest, user *model.User, ws *websocket.Conn) error
	ListPersonas(authorID uint) ([]model.Persona, error)
	GetPersona(authorID, id uint) (*model.Persona, error)
}

type personaService struct {
	retrieval      RetrievalService
	llmClient      llm.Client
	personaRepo    repository.PersonaRepository
	generationRepo repository.GenerationRepository
}

// NewPersonaService 创建一个新的 PersonaService 实例。
func NewPersonaService(retrieval RetrievalService, llmClient llm.Client, personaRepo repository.PersonaRepository, generationRepo repository.GenerationRepository) PersonaService {
	return &personaService{
		retrieval:      retrieval,
		llmClient:      llmClient,
		personaRepo:    personaRepo,
		generationRepo: generationRepo,
	}
}

// StreamGenerate 协调一次画像生成：检索相关贡献内容作为上下文，调用 LLM
// 流式生成，生成完成后把完整结果落库并更新会话历史。
func (s *personaService) StreamGenerate(ctx context.Context, req GenerateRequest, user *model.User, ws *websocket.Conn) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("%w: query 不能为空", ErrValidation)
	}

	topK := config.Conf.RAG.TopK
	if req.TopK != nil {
		// 显式传入的值原样透传，0 走检索层的免检索快速路径
		topK = *req.TopK
	}

	// 1. 检索上下文。生成面向单个领域，带上请求里的过滤条件
	chunks, err := s.retrieval.Retrieve(ctx, []string{req.Query}, topK, RetrievalFilters{
		DomainKey:   req.DomainKey,
		LanguageKey: string(req.LanguageKey),
	})
	if err != nil {
		return fmt.Errorf("failed to retrieve context: %w", err)
	}

	// 2. 构建上下文与 system 消息、历史
	contextText := buildContextText(chunks)
	systemMsg := buildSystemMessage(contextText)
	history, err := s.loadHistory(ctx, user.ID)
	if err != nil {
		log.Errorf("Failed to load generation history: %v", err)
		history = []model.GenerationMessage{}
	}
	messages := composeMessages(systemMsg, history, req.Query)

	// 拦截 websocket writer 以捕获完整生成结果，并包装为 JSON 分块
	answerBuilder := &strings.Builder{}
	interceptor := &wsWriterInterceptor{conn: ws, writer: answerBuilder}

	// 3. 调用 LLM 客户端流式生成
	err = s.llmClient.StreamChatMessages(ctx, messages, buildGenerationParams(), interceptor)
	if err != nil {
		return err
	}

	// 4. 发送完成通知，落库并保存会话历史
	sendCompletion(ws)
	fullAnswer := answerBuilder.String()
	if len(fullAnswer) > 0 {
		// 使用后台上下文，即使原始请求被取消也要保存已生成的结果
		bgCtx := context.Background()
		persona := &model.Persona{
			AuthorID:    user.ID,
			Title:       req.Title,
			Description: truncateRunes(req.Query, 200),
			Content:     fullAnswer,
			DomainKey:   req.DomainKey,
			LanguageKey: req.LanguageKey,
		}
		if err := s.personaRepo.Create(persona); err != nil {
			log.Errorf("Failed to save generated persona: %v", err)
		}
		if err := s.appendHistory(bgCtx, user.ID, req.Query, fullAnswer); err != nil {
			log.Errorf("Failed to save generation history: %v", err)
		}
	}

	return nil
}

// ListPersonas 列出作者的全部画像。
func (s *personaService) ListPersonas(authorID uint) ([]model.Persona, error) {
	return s.personaRepo.FindByAuthor(authorID)
}

// GetPersona 查找作者本人的一份画像。
func (s *personaService) GetPersona(authorID, id uint) (*model.Persona, error) {
	persona, err := s.personaRepo.FindByIDAndAuthor(id, authorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return persona, nil
}

// buildContextText 把检索结果拼接为带序号的参考材料文本。
func buildContextText(chunks []model.ScoredChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var contextBuilder strings.Builder
	for i, c := range chunks {
		source := c.Metadata.GetString(model.MetaKeySource)
		if source == "" {
			source = "unknown"
		}
		contextBuilder.WriteString(fmt.Sprintf("[%d] (%s) %s\n", i+1, source, c.Content))
	}
	return contextBuilder.String()
}

func buildSystemMessage(contextText string) string {
	rules := config.Conf.LLM.Prompt.Rules
	refStart := config.Conf.LLM.Prompt.RefStart
	if refStart == "" {
		refStart = "<<REF>>"
	}
	refEnd := config.Conf.LLM.Prompt.RefEnd
	if refEnd == "" {
		refEnd = "<<END>>"
	}
	var sys strings.Builder
	if rules != "" {
		sys.WriteString(rules)
		sys.WriteString("\n\n")
	}
	sys.WriteString(refStart)
	sys.WriteString("\n")
	if contextText != "" {
		sys.WriteString(contextText)
	} else {
		noRes := config.Conf.LLM.Prompt.NoResultText
		if noRes == "" {
			noRes = "（本轮无检索结果）"
		}
		sys.WriteString(noRes)
		sys.WriteString("\n")
	}
	sys.WriteString(refEnd)
	return sys.String()
}

func (s *personaService) loadHistory(ctx context.Context, userID uint) ([]model.GenerationMessage, error) {
	sessionID, err := s.generationRepo.GetOrCreateSessionID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.generationRepo.GetHistory(ctx, sessionID)
}

func composeMessages(systemMsg string, history []model.GenerationMessage, userInput string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: systemMsg})
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: userInput})
	return msgs
}

// appendHistory 把本轮问答追加到 Redis 中的会话历史。
func (s *personaService) appendHistory(ctx context.Context, userID uint, question, answer string) error {
	sessionID, err := s.generationRepo.GetOrCreateSessionID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get or create generation session ID: %w", err)
	}

	history, err := s.generationRepo.GetHistory(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to get generation history: %w", err)
	}

	history = append(history,
		model.GenerationMessage{Role: "user", Content: question, Timestamp: time.Now()},
		model.GenerationMessage{Role: "assistant", Content: answer, Timestamp: time.Now()},
	)

	return s.generationRepo.UpdateHistory(ctx, sessionID, history)
}

func buildGenerationParams() *llm.GenerationParams {
	var gp llm.GenerationParams
	if config.Conf.LLM.Generation.Temperature != 0 {
		t := config.Conf.LLM.Generation.Temperature
		gp.Temperature = &t
	}
	if config.Conf.LLM.Generation.TopP != 0 {
		p := config.Conf.LLM.Generation.TopP
		gp.TopP = &p
	}
	if config.Conf.LLM.Generation.MaxTokens != 0 {
		m := config.Conf.LLM.Generation.MaxTokens
		gp.MaxTokens = &m
	}
	if gp.Temperature == nil && gp.TopP == nil && gp.MaxTokens == nil {
		return nil
	}
	return &gp
}

// truncateRunes 在不切断多字节字符的前提下截断字符串。
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// wsWriterInterceptor 是对 websocket.Conn 的封装，用于捕获写入的消息。
type wsWriterInterceptor struct {
	conn   *websocket.Conn
	writer *strings.Builder
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *wsWriterInterceptor) WriteMessage(messageType int, data []byte) error {
	w.writer.Write(data)
	// 将原始分块包装成 {"chunk":"..."}
	payload := map[string]string{"chunk": string(data)}
	b, _ := json.Marshal(payload)
	return w.conn.WriteMessage(messageType, b)
}

// sendCompletion 发送完成通知 JSON
func sendCompletion(ws *websocket.Conn) {
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "生成已完成",
		"timestamp": time.Now().UnixMilli(),
	}
	b, _ := json.Marshal(notif)
	_ = ws.WriteMessage(websocket.TextMessage, b)
}
