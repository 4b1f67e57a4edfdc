// Package notify announces drivesync artifacts to downstream consumers over
// Kafka. Notifications are informational; the stages never read them.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/kafka"
)

type EventType string

const (
	EventManifestWritten EventType = "manifest.written"
	EventRecordPublished EventType = "record.published"
)

type ManifestWritten struct {
	Type      EventType `json:"type"`
	CycleID   string    `json:"cycle_id"`
	Path      string    `json:"path"`
	Key       string    `json:"key"`
	Entries   int       `json:"entries"`
	Uploaded  bool      `json:"uploaded"`
	Timestamp time.Time `json:"timestamp"`
}

type RecordPublished struct {
	Type      EventType `json:"type"`
	CycleID   string    `json:"cycle_id"`
	ItemID    string    `json:"item_id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	Version   string    `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier publishes stage events.
type Notifier interface {
	ManifestWritten(ctx context.Context, ev ManifestWritten) error
	RecordsPublished(ctx context.Context, evs []RecordPublished) error
	Close() error
}

type publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
	PublishBatch(ctx context.Context, events []kafka.Event) error
	Close() error
}

// Kafka sends manifest events and record events to their own topics.
type Kafka struct {
	manifests publisher
	records   publisher
}

func NewKafka(cfg config.KafkaConfig) *Kafka {
	return &Kafka{
		manifests: kafka.NewProducer(cfg, cfg.Topics.ManifestWritten),
		records:   kafka.NewProducer(cfg, cfg.Topics.RecordPublished),
	}
}

func (k *Kafka) ManifestWritten(ctx context.Context, ev ManifestWritten) error {
	ev.Type = EventManifestWritten
	return k.manifests.Publish(ctx, kafka.Event{
		Key:   ev.Path,
		Type:  string(EventManifestWritten),
		Value: ev,
	})
}

// RecordsPublished sends all events of a cycle in one batch keyed by item id.
func (k *Kafka) RecordsPublished(ctx context.Context, evs []RecordPublished) error {
	batch := make([]kafka.Event, 0, len(evs))
	for _, ev := range evs {
		ev.Type = EventRecordPublished
		batch = append(batch, kafka.Event{
			Key:   ev.ItemID,
			Type:  string(EventRecordPublished),
			Value: ev,
		})
	}
	return k.records.PublishBatch(ctx, batch)
}

func (k *Kafka) Close() error {
	return errors.Join(k.manifests.Close(), k.records.Close())
}

type Nop struct{}

func (Nop) ManifestWritten(context.Context, ManifestWritten) error { return nil }
func (Nop) RecordsPublished(context.Context, []RecordPublished) error { return nil }
func (Nop) Close() error { return nil }
