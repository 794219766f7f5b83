// Package kafka 提供了贡献内容生命周期事件的 Kafka 生产者。
// 事件只做通知（fire-and-forget），摄取管线本身在请求内同步执行，
// 不由消息队列驱动。
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"persona-craft-go/internal/config"
	"persona-craft-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

// ContributionEvent 是贡献内容发生变更后发出的事件。
type ContributionEvent struct {
	Action    string `json:"action"` // "ingested" | "updated" | "deleted"
	DocID     uint   `json:"doc_id"`
	AuthorID  uint   `json:"author_id"`
	Chunks    int    `json:"chunks"`
	Timestamp int64  `json:"timestamp"`
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// ProduceContributionEvent 发送一个贡献变更事件到 Kafka。
// 发送失败只记录日志，不影响请求本身。
func ProduceContributionEvent(event ContributionEvent) {
	if producer == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		log.Errorf("序列化贡献事件失败: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := producer.WriteMessages(ctx, kafka.Message{Value: eventBytes}); err != nil {
		log.Warnf("发送贡献事件失败 (action=%s, doc_id=%d): %v", event.Action, event.DocID, err)
	}
}

// CloseProducer 在停机时关闭 Kafka 生产者。
func CloseProducer() {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		log.Warnf("关闭 Kafka 生产者失败: %v", err)
	}
}
