package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []kafka.Event
	err    error
}

func (r *recorder) Publish(ctx context.Context, ev kafka.Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func sampleEvent() RunCompleted {
	return RunCompleted{
		RunID:          "run-1",
		Output:         "out/matriz.csv",
		Encoding:       "sparse",
		Workers:        4,
		Documents:      10,
		Terms:          120,
		NonZero:        300,
		ElapsedSeconds: 0.25,
		CompletedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestPublish(t *testing.T) {
	rec := &recorder{}
	require.NoError(t, Publish(context.Background(), rec, sampleEvent()))
	require.Len(t, rec.events, 1)
	assert.Equal(t, "run-1", rec.events[0].Key)
	assert.Equal(t, sampleEvent(), rec.events[0].Value)
}

func TestPublishError(t *testing.T) {
	rec := &recorder{err: errors.New("broker down")}
	err := Publish(context.Background(), rec, sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run-1")
}

func TestHandleMessage(t *testing.T) {
	value, err := json.Marshal(sampleEvent())
	require.NoError(t, err)

	var got []RunCompleted
	handler := HandleMessage(func(ev RunCompleted) { got = append(got, ev) })

	require.NoError(t, handler(context.Background(), []byte("run-1"), value))
	require.NoError(t, handler(context.Background(), []byte("junk"), []byte("{not json")))

	require.Len(t, got, 1)
	assert.Equal(t, sampleEvent(), got[0])
}
