package redpanda

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/drfirst/medguide/internal/audit"
)

func TestEventRecord(t *testing.T) {
	event, err := audit.NewEvent("sess-42", audit.EventPromptSetRerolled, audit.PromptSetRerolledData{Topic: "Diabetes Genetics", SetIndex: 2})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}

	record, err := EventRecord(TopicConversationEvents, event)
	if err != nil {
		t.Fatalf("EventRecord: %v", err)
	}
	if record.Topic != TopicConversationEvents || string(record.Key) != "sess-42" {
		t.Errorf("unexpected topic/key %s/%s", record.Topic, record.Key)
	}

	carrier := headerCarrier{record: record}
	if carrier.Get("event_type") != "PromptSetRerolled" || carrier.Get("event_id") != event.ID {
		t.Errorf("unexpected headers %v", record.Headers)
	}

	var decoded audit.Event
	if err := json.Unmarshal(record.Value, &decoded); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if decoded.ID != event.ID || decoded.EventType != audit.EventPromptSetRerolled {
		t.Errorf("unexpected decoded event %+v", decoded)
	}
}

func TestHeaderCarrier_RoundTripsTraceContext(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	prop := propagation.TraceContext{}
	record := &kgo.Record{}
	prop.Inject(ctx, headerCarrier{record: record})

	if got := (headerCarrier{record: record}).Get("traceparent"); got != "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01" {
		t.Fatalf("traceparent = %q", got)
	}

	extracted := trace.SpanContextFromContext(prop.Extract(context.Background(), headerCarrier{record: record}))
	if extracted.TraceID() != traceID || !extracted.IsRemote() {
		t.Errorf("unexpected extracted span context %+v", extracted)
	}
}

func TestHeaderCarrier_SetReplaces(t *testing.T) {
	record := &kgo.Record{}
	c := headerCarrier{record: record}
	c.Set("k", "1")
	c.Set("k", "2")
	if len(record.Headers) != 1 || c.Get("k") != "2" {
		t.Errorf("unexpected headers %v", record.Headers)
	}
	if keys := c.Keys(); len(keys) != 1 || keys[0] != "k" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestAuditTopicConfigs(t *testing.T) {
	cfgs := AuditTopicConfigs("custom.events")
	if len(cfgs) != 2 || cfgs[0].Name != "custom.events" || cfgs[1].Name != "custom.events.dlq" {
		t.Errorf("unexpected topic configs %+v", cfgs)
	}
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	if _, err := NewProducer(ProducerConfig{}, nil); err == nil {
		t.Fatal("expected error without brokers")
	}
}
