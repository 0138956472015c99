package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/UninstallAll/AIDAscraper/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher publishes executor commands to a Kafka topic keyed by job id,
// so every command for one job lands on the same partition.
type KafkaDispatcher struct {
	writer messageWriter
}

// NewKafkaDispatcher creates a Kafka dispatcher for the given brokers and topic.
func NewKafkaDispatcher(brokers []string, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: false,
		},
	}
}

// NewKafkaDispatcherWithWriter builds a dispatcher using a custom writer (tests).
func NewKafkaDispatcherWithWriter(writer messageWriter) *KafkaDispatcher {
	return &KafkaDispatcher{writer: writer}
}

// Close shuts down the underlying writer.
func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, job *models.ScrapeJob, cfg *models.SiteConfiguration) error {
	return d.send(ctx, StartCommand(job, cfg))
}

func (d *KafkaDispatcher) Stop(ctx context.Context, jobID string) error {
	return d.send(ctx, StopCommand(jobID))
}

func (d *KafkaDispatcher) send(ctx context.Context, cmd Command) error {
	payload, err := cmd.encode()
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(cmd.JobID),
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: CommandField, Value: []byte(cmd.Type)},
		},
	}
	if err = d.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s command for job %s: %w", cmd.Type, cmd.JobID, err)
	}
	return nil
}
