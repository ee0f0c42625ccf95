// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crm-agent-go/internal/config"
	"crm-agent-go/pkg/log"
	"crm-agent-go/pkg/retry"
	"crm-agent-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// maxAttempts 是单个入库任务的最大尝试次数
const maxAttempts = 3

// TaskProcessor defines the interface for any service that can process an ingest task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.KnowledgeIngestTask) error
}

// Producer 发布知识库入库任务。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	return &Producer{writer: &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}}
}

// ProduceIngestTask 发送一个入库任务到 Kafka。
func (p *Producer) ProduceIngestTask(ctx context.Context, task tasks.KnowledgeIngestTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.DocumentID),
		Value: taskBytes,
	})
}

// Close 关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// AttemptCounter 记录任务已尝试的次数，进程重启后仍然有效。
type AttemptCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type redisAttemptCounter struct {
	rdb *redis.Client
}

// NewRedisAttemptCounter 使用 Redis 计数，key 保留 24 小时。
func NewRedisAttemptCounter(rdb *redis.Client) AttemptCounter {
	return &redisAttemptCounter{rdb: rdb}
}

func (c *redisAttemptCounter) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = c.rdb.Expire(ctx, key, 24*time.Hour).Err()
	return n, nil
}

func (c *redisAttemptCounter) Reset(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

var errAttemptsExhausted = errors.New("ingest attempts exhausted")

// Consumer 消费入库任务。失败的任务在本进程内按退避重试，最多 maxAttempts 次后提交 offset。
type Consumer struct {
	cfg       config.KafkaConfig
	attempts  AttemptCounter
	processor TaskProcessor
	backoff   retry.Policy
}

// NewConsumer 创建消费者。
func NewConsumer(cfg config.KafkaConfig, attempts AttemptCounter, processor TaskProcessor) *Consumer {
	return &Consumer{
		cfg:       cfg,
		attempts:  attempts,
		processor: processor,
		backoff:   retry.Policy{BaseDelay: time.Second, MaxDelay: 10 * time.Second},
	}
}

// Run 阻塞消费直到 ctx 结束。
func (c *Consumer) Run(ctx context.Context) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{c.cfg.Brokers},
		Topic:    c.cfg.Topic,
		GroupID:  c.cfg.GroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", c.cfg.Topic)
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Error("从 Kafka 读取消息失败", err)
			return
		}
		c.handle(ctx, r, m)
	}
}

func (c *Consumer) handle(ctx context.Context, r committer, m kafka.Message) {
	var task tasks.KnowledgeIngestTask
	if err := json.Unmarshal(m.Value, &task); err != nil {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
		// 消息格式错误，直接提交，避免阻塞队列
		c.commit(ctx, r, m)
		return
	}

	attemptsKey := fmt.Sprintf("kafka:attempts:%s", task.DocumentID)
	policy := c.backoff
	policy.MaxAttempts = maxAttempts
	policy.Retryable = func(err error) bool { return !errors.Is(err, errAttemptsExhausted) }

	log.Infof("开始处理入库任务: DocumentID=%s, Object=%s", task.DocumentID, task.ObjectName)
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		// 计数跨重启累计；Redis 不可用时只按本进程内的次数重试
		if n, incErr := c.attempts.Incr(ctx, attemptsKey); incErr != nil {
			log.Warnf("记录入库任务尝试次数失败: DocumentID=%s, Error: %v", task.DocumentID, incErr)
		} else if n > maxAttempts {
			return errAttemptsExhausted
		}
		if err := c.processor.Process(ctx, task); err != nil {
			log.Warnf("处理入库任务失败: DocumentID=%s, Error: %v", task.DocumentID, err)
			return err
		}
		return nil
	})
	if err != nil && ctx.Err() != nil {
		// 停机中断，不提交 offset，重启后继续
		return
	}
	if err != nil {
		log.Errorf("入库任务多次失败(>=%d)，提交 offset 终止重试: DocumentID=%s, Error: %v", maxAttempts, task.DocumentID, err)
	} else {
		log.Infof("入库任务处理成功: DocumentID=%s", task.DocumentID)
	}
	_ = c.attempts.Reset(ctx, attemptsKey)
	c.commit(ctx, r, m)
}

func (c *Consumer) commit(ctx context.Context, r committer, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}
