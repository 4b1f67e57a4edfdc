package notify

import (
	"context"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/kafka"
)

type capturePublisher struct {
	single []kafka.Event
	batch  []kafka.Event
	closed bool
}

func (c *capturePublisher) Publish(ctx context.Context, ev kafka.Event) error {
	c.single = append(c.single, ev)
	return nil
}

func (c *capturePublisher) PublishBatch(ctx context.Context, evs []kafka.Event) error {
	c.batch = append(c.batch, evs...)
	return nil
}

func (c *capturePublisher) Close() error {
	c.closed = true
	return nil
}

func TestKafka_ManifestWritten(t *testing.T) {
	m, r := &capturePublisher{}, &capturePublisher{}
	k := &Kafka{manifests: m, records: r}

	err := k.ManifestWritten(context.Background(), ManifestWritten{Path: "jsons/sharepoint_data.json", Entries: 3})
	if err != nil {
		t.Fatalf("ManifestWritten: %v", err)
	}
	if len(m.single) != 1 || len(r.single)+len(r.batch) != 0 {
		t.Fatalf("manifest event went to the wrong topic: %+v %+v", m, r)
	}
	ev := m.single[0]
	if ev.Key != "jsons/sharepoint_data.json" || ev.Type != string(EventManifestWritten) {
		t.Fatalf("event = %+v", ev)
	}
	if v := ev.Value.(ManifestWritten); v.Type != EventManifestWritten || v.Entries != 3 {
		t.Fatalf("value = %+v", v)
	}
}

func TestKafka_RecordsPublished(t *testing.T) {
	m, r := &capturePublisher{}, &capturePublisher{}
	k := &Kafka{manifests: m, records: r}

	err := k.RecordsPublished(context.Background(), []RecordPublished{
		{ItemID: "1", Name: "a.pdf"},
		{ItemID: "3", Name: "c.pdf"},
	})
	if err != nil {
		t.Fatalf("RecordsPublished: %v", err)
	}
	if len(r.batch) != 2 || r.batch[0].Key != "1" || r.batch[1].Key != "3" {
		t.Fatalf("batch = %+v", r.batch)
	}
	if err := k.Close(); err != nil || !m.closed || !r.closed {
		t.Fatalf("close: err=%v m=%v r=%v", err, m.closed, r.closed)
	}
}
