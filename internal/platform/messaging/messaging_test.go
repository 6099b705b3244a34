package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBroker_Publish(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "envio_email_queue", []byte(`{"tipo":"x"}`)))
	require.NoError(t, b.Publish(ctx, "other", []byte(`{}`)))

	msgs := b.Messages("envio_email_queue")
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"tipo":"x"}`, string(msgs[0].Body))
}

func TestMemoryBroker_FailAndClose(t *testing.T) {
	b := NewMemoryBroker()
	boom := errors.New("broker down")
	b.FailPublishes(boom)
	assert.ErrorIs(t, b.Publish(context.Background(), "q", nil), boom)

	b.FailPublishes(nil)
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Publish(context.Background(), "q", nil), ErrClosed)
}

func TestImageAnalysisClient_Reply(t *testing.T) {
	b := NewMemoryBroker()
	b.Respond("image_analysis", func(_ context.Context, body []byte) ([]byte, error) {
		var req ImageAnalysisRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}
		return json.Marshal(ImageAnalysisResponse{AnalysisText: "mime=" + req.MimeType})
	})

	client := NewImageAnalysisClient(b, "image_analysis", time.Second)
	resp, err := client.Analyze(context.Background(), ImageAnalysisRequest{ImageBytes: []byte{1, 2}, MimeType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "mime=image/png", resp.AnalysisText)
}

func TestImageAnalysisClient_Timeout(t *testing.T) {
	b := NewMemoryBroker()
	b.Respond("image_analysis", func(ctx context.Context, _ []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	client := NewImageAnalysisClient(b, "image_analysis", 20*time.Millisecond)
	_, err := client.Analyze(context.Background(), ImageAnalysisRequest{MimeType: "image/png"})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestImageAnalysisClient_NoWorker(t *testing.T) {
	client := NewImageAnalysisClient(NewMemoryBroker(), "image_analysis", 10*time.Millisecond)
	_, err := client.Analyze(context.Background(), ImageAnalysisRequest{})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestMemoryStream(t *testing.T) {
	s := NewMemoryStream()
	require.NoError(t, s.Emit(context.Background(), "appt-1", map[string]string{"type": "booked"}))

	events := s.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "appt-1", events[0].Key)
	assert.JSONEq(t, `{"type":"booked"}`, string(events[0].Value))
}
