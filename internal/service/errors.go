// Package service 包含了应用的业务逻辑层。
package service

import "errors"

// 服务层的类型化错误。repository 层的查找失败在这里被转换为 ErrNotFound，
// 不会把 gorm 的错误泄漏给 handler；handler 按 errors.Is 映射为 404/400。
// 上游（embedding/向量库）的失败不做包装吞没，原样向调用方传播。
var (
	// ErrNotFound 表示目标文档不存在，或不属于当前调用者。
	ErrNotFound = errors.New("document not found")
	// ErrValidation 表示请求负载非法，在任何持久化动作之前被拒绝。
	ErrValidation = errors.New("invalid payload")
)
