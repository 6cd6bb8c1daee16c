package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/accounts/internal/transport"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{topic: "account_events", writer: w}

	ev := transport.AccountEvent{
		Type:      "account_created",
		AccountID: "7b0c",
		UserName:  "alice",
		At:        time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "7b0c", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "account_created", string(msg.Headers[0].Value))

	var got transport.AccountEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, ev, got)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_PublishError(t *testing.T) {
	boom := errors.New("leader not available")
	p := &Producer{topic: "account_events", writer: &fakeWriter{err: boom}}

	err := p.Publish(context.Background(), transport.AccountEvent{Type: "account_deleted", AccountID: "1"})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "account_events")
}

func TestNewProducer(t *testing.T) {
	_, err := NewProducer(nil, "account_events")
	require.ErrorIs(t, err, errNoBrokers)

	p, err := NewProducer([]string{"localhost:9092"}, "account_events")
	require.NoError(t, err)
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "account_events", w.Topic)
	require.NoError(t, p.Close())
}
