// Package events publishes score lifecycle events to Kafka. Publishing is
// best-effort audit output; scoring never fails because a broker is down.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
	"github.com/twmb/franz-go/plugin/kotel"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

// DefaultTopic receives score.completed events.
const DefaultTopic = "score-completed"

// Publisher wraps a Kafka producer and implements domain.EventPublisher.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// NewPublisher constructs a Publisher against the given brokers and ensures
// the topic exists.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=events.new_publisher: no seed brokers provided")
	}
	if topic == "" {
		topic = DefaultTopic
	}

	tracer := kotel.NewKotel(kotel.WithTracer(kotel.NewTracer()))
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(5),
		kgo.ProducerBatchMaxBytes(1000000),
		kgo.WithHooks(tracer.Hooks()...),
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("op=events.new_publisher: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := createTopicIfNotExists(ctx, client, topic, 1, 1); err != nil {
		slog.Warn("failed to create topic, it may already exist",
			slog.String("topic", topic),
			slog.Any("error", err))
	}
	return &Publisher{client: client, topic: topic}, nil
}

type scoreCompletedPayload struct {
	ResumeID        string    `json:"resume_id"`
	JobID           string    `json:"job_id"`
	Composite       float64   `json:"composite"`
	ProfileTag      string    `json:"profile_tag"`
	AgentsCompleted int       `json:"agents_completed"`
	CompletedAt     time.Time `json:"completed_at"`
}

// PublishScoreCompleted emits one event per persisted composite. The record
// key is resume_id:job_id so replays for the same pair stay ordered.
func (p *Publisher) PublishScoreCompleted(ctx domain.Context, ev domain.ScoreCompletedEvent) error {
	b, err := json.Marshal(scoreCompletedPayload{
		ResumeID:        ev.ResumeID,
		JobID:           ev.JobID,
		Composite:       ev.Composite,
		ProfileTag:      ev.ProfileTag,
		AgentsCompleted: ev.AgentsCompleted,
		CompletedAt:     ev.CompletedAt,
	})
	if err != nil {
		return fmt.Errorf("op=events.publish: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(ev.ResumeID + ":" + ev.JobID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "resume_id", Value: []byte(ev.ResumeID)},
			{Key: "job_id", Value: []byte(ev.JobID)},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("op=events.publish: %w", err)
	}
	slog.Debug("score event published",
		slog.String("topic", p.topic),
		slog.String("resume_id", ev.ResumeID),
		slog.String("job_id", ev.JobID))
	return nil
}

// Close flushes and closes the underlying client.
func (p *Publisher) Close() error {
	if p.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = p.client.Flush(ctx)
		p.client.Close()
	}
	return nil
}

// createTopicIfNotExists creates the topic through the admin API, treating
// TOPIC_ALREADY_EXISTS as success.
func createTopicIfNotExists(ctx context.Context, client *kgo.Client, topic string, partitions int32, replicationFactor int16) error {
	req := kmsg.NewCreateTopicsRequest()
	req.TimeoutMillis = 30000

	topicReq := kmsg.NewCreateTopicsRequestTopic()
	topicReq.Topic = topic
	topicReq.NumPartitions = partitions
	topicReq.ReplicationFactor = replicationFactor
	req.Topics = append(req.Topics, topicReq)

	resp, err := client.Request(ctx, &req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	createTopicsResp, ok := resp.(*kmsg.CreateTopicsResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	for _, topicResp := range createTopicsResp.Topics {
		if topicResp.ErrorCode != 0 {
			// Error code 36 = TOPIC_ALREADY_EXISTS
			if topicResp.ErrorCode == 36 {
				return nil
			}
			errorMsg := ""
			if topicResp.ErrorMessage != nil {
				errorMsg = *topicResp.ErrorMessage
			}
			return fmt.Errorf("create topic error: %s (code %d)", errorMsg, topicResp.ErrorCode)
		}
	}
	return nil
}
