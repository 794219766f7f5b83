// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"persona-craft-go/internal/model"
	"persona-craft-go/pkg/token"

	"github.com/go-redis/redis/v8"
)

// GenerationRepository 定义了生成会话历史记录的操作接口。
// 会话历史是短生命周期数据，存放在 Redis 中。
type GenerationRepository interface {
	GetOrCreateSessionID(ctx context.Context, userID uint) (string, error)
	GetHistory(ctx context.Context, sessionID string) ([]model.GenerationMessage, error)
	UpdateHistory(ctx context.Context, sessionID string, messages []model.GenerationMessage) error
}

type redisGenerationRepository struct {
	redisClient *redis.Client
}

// NewGenerationRepository 创建一个新的 GenerationRepository 实例。
func NewGenerationRepository(redisClient *redis.Client) GenerationRepository {
	return &redisGenerationRepository{redisClient: redisClient}
}

// GetOrCreateSessionID 获取或创建用户当前的生成会话 ID。
func (r *redisGenerationRepository) GetOrCreateSessionID(ctx context.Context, userID uint) (string, error) {
	userKey := fmt.Sprintf("user:%d:current_generation", userID)
	sessionID, err := r.redisClient.Get(ctx, userKey).Result()
	if err == redis.Nil {
		sessionID = token.GenerateRandomString(16)
		if err := r.redisClient.Set(ctx, userKey, sessionID, 7*24*time.Hour).Err(); err != nil {
			return "", fmt.Errorf("failed to set generation session id: %w", err)
		}
		return sessionID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get generation session id: %w", err)
	}
	return sessionID, nil
}

// GetHistory 从 Redis 获取生成会话的历史记录。
func (r *redisGenerationRepository) GetHistory(ctx context.Context, sessionID string) ([]model.GenerationMessage, error) {
	key := fmt.Sprintf("generation:%s", sessionID)
	jsonData, err := r.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return []model.GenerationMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation history: %w", err)
	}
	var messages []model.GenerationMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal generation history: %w", err)
	}
	return messages, nil
}

// UpdateHistory 在 Redis 中更新生成会话的历史记录。
func (r *redisGenerationRepository) UpdateHistory(ctx context.Context, sessionID string, messages []model.GenerationMessage) error {
	key := fmt.Sprintf("generation:%s", sessionID)
	// 保留最近 20 条
	if len(messages) > 20 {
		messages = messages[len(messages)-20:]
	}
	jsonData, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal generation history: %w", err)
	}
	if err := r.redisClient.Set(ctx, key, jsonData, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set generation history: %w", err)
	}
	return nil
}
