package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	appcert "github.com/afp/backend/internal/application/certification"
	"github.com/afp/backend/internal/domain/certification"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleEvent() appcert.FileEvent {
	return appcert.FileEvent{
		Type:           appcert.EventFileCertified,
		SourceFile:     "raw/claims.csv",
		State:          appcert.StateCommitted,
		Rows:           2,
		Outcomes:       map[certification.Outcome]int{certification.OutcomeAuthorized: 2},
		TotalCertified: decimal.RequireFromString("250.50"),
		OccurredAt:     time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "raw/claims.csv", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, appcert.EventFileCertified, string(msg.Headers[0].Value))

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "committed", body["state"])
	assert.Equal(t, "250.5", body["total_certified"])
	assert.Equal(t, float64(2), body["outcomes"].(map[string]any)["authorized"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}, timeout: time.Second}
	err := p.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	entries := logs.FilterMessage("file event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, appcert.EventFileCertified, entries[0].ContextMap()["event_type"])
}
