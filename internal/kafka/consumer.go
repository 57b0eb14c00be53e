package kafka

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/eapache/go-resiliency/retrier"
	"github.com/skatehubba/skate-core/internal/config"
	"github.com/skatehubba/skate-core/internal/domain"
)

// AuthorizationHeader carries the producer token on vote messages
const AuthorizationHeader = "authorization"

const defaultStartTimeout = 30 * time.Second

// VoteHandler applies judge votes delivered over Kafka
type VoteHandler interface {
	HandleVoteEvent(ctx context.Context, event domain.VoteEvent) error
}

// Consumer consumes judge vote messages from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	handler       VoteHandler
	logger        *slog.Logger
	retry         *retrier.Retrier
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
	readyOnce     sync.Once
}

// NewConsumer creates a new Kafka vote consumer
func NewConsumer(cfg *config.KafkaConfig, handler VoteHandler, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	c := newConsumer(cfg, handler, logger)
	c.consumerGroup = consumerGroup
	return c, nil
}

func newConsumer(cfg *config.KafkaConfig, handler VoteHandler, logger *slog.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		config:  cfg,
		handler: handler,
		logger:  logger,
		retry:   retrier.New(retrier.ConstantBackoff(cfg.RetryAttempts, cfg.RetryDelay), transientClassifier{}),
		ctx:     ctx,
		cancel:  cancel,
		ready:   make(chan bool),
	}
}

// Start begins consuming messages from Kafka. It returns once the first
// session is established, or an error if none is within StartTimeout.
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka vote consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go c.consumeLoop()

	startTimeout := c.config.StartTimeout
	if startTimeout <= 0 {
		startTimeout = defaultStartTimeout
	}
	timeout := time.NewTimer(startTimeout)
	defer timeout.Stop()

	select {
	case <-c.ready:
		c.logger.Info("Kafka vote consumer ready")
	case <-timeout.C:
		c.cancel()
		c.wg.Wait()
		_ = c.consumerGroup.Close()
		return fmt.Errorf("kafka consumer not ready after %s", startTimeout)
	case <-c.ctx.Done():
		return c.ctx.Err()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// consumeLoop rejoins the group after every session until the consumer is
// stopped. Failed joins back off by RetryDelay.
func (c *Consumer) consumeLoop() {
	defer c.wg.Done()
	handler := &consumerGroupHandler{consumer: c}
	for {
		err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler)
		if errors.Is(err, sarama.ErrClosedConsumerGroup) || c.ctx.Err() != nil {
			return
		}
		if err == nil {
			continue
		}

		c.logger.Error("error from consumer", "error", err, "retry_in", c.config.RetryDelay)
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(c.config.RetryDelay):
		}
	}
}

func (c *Consumer) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka vote consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// process decodes and applies one message. Undecodable messages and votes the
// domain rejects are logged and dropped; other failures are retried.
// It returns an error when the vote could not be applied after retries.
func (c *Consumer) process(ctx context.Context, message *sarama.ConsumerMessage) error {
	var event domain.VoteEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		c.logger.Warn("failed to unmarshal vote message",
			"error", err,
			"offset", message.Offset,
			"partition", message.Partition,
		)
		return nil
	}

	if !c.trustedProducer(message) {
		c.logger.Warn("dropping vote from unauthenticated producer",
			"offset", message.Offset,
			"partition", message.Partition,
		)
		return nil
	}

	if event.SubmissionID == "" || event.JudgeID == "" || len(event.Roles) == 0 {
		c.logger.Warn("invalid vote message",
			"submission_id", event.SubmissionID,
			"judge_id", event.JudgeID,
			"roles", event.Roles,
		)
		return nil
	}

	err := c.retry.RunCtx(ctx, func(ctx context.Context) error {
		return c.handler.HandleVoteEvent(ctx, event)
	})
	switch {
	case err == nil:
		c.logger.Debug("applied vote", "submission_id", event.SubmissionID, "judge_id", event.JudgeID)
		return nil
	case domain.IsTerminal(err):
		c.logger.Info("vote rejected",
			"submission_id", event.SubmissionID,
			"judge_id", event.JudgeID,
			"reason", err.Error(),
		)
		return nil
	default:
		return err
	}
}

// trustedProducer checks the authorization header against ProducerToken.
// Only producers holding the token may vouch for a judge's roles.
func (c *Consumer) trustedProducer(message *sarama.ConsumerMessage) bool {
	if c.config.ProducerToken == "" {
		return true
	}
	want := []byte("Bearer " + c.config.ProducerToken)
	for _, header := range message.Headers {
		if header != nil && bytes.EqualFold(header.Key, []byte(AuthorizationHeader)) {
			return subtle.ConstantTimeCompare(header.Value, want) == 1
		}
	}
	return false
}

// transientClassifier retries unclassified failures. Domain rejections are
// final and ErrTransient means the resolver already spent its own retries.
type transientClassifier struct{}

func (transientClassifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case domain.IsTerminal(err), errors.Is(err, domain.ErrTransient), errors.Is(err, context.Canceled):
		return retrier.Fail
	default:
		return retrier.Retry
	}
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.consumer.markReady()
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim applies votes from a partition in small batches. Offsets are
// marked in order as votes apply; the first failure ends the claim with that
// message and everything after it unmarked, so the next session redelivers
// them.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	batch := make([]*sarama.ConsumerMessage, 0, cfg.BatchSize)
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	processBatch := func() error {
		if len(batch) == 0 {
			return nil
		}
		defer func() { batch = batch[:0] }()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		for i, message := range batch {
			if err := h.consumer.process(ctx, message); err != nil {
				h.consumer.logger.Error("failed to apply vote, leaving offset for redelivery",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
					"unmarked", len(batch)-i,
				)
				return err
			}
			session.MarkMessage(message, "")
		}
		h.consumer.logger.Debug("processed vote batch", "batch_size", len(batch))
		return nil
	}

	for {
		select {
		case <-session.Context().Done():
			return processBatch()

		case <-batchTimer.C:
			if err := processBatch(); err != nil {
				return err
			}
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				return processBatch()
			}

			batch = append(batch, message)
			if len(batch) >= cfg.BatchSize {
				if err := processBatch(); err != nil {
					return err
				}
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}
