package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type ImageAnalysisRequest struct {
	ImageBytes []byte `json:"image_bytes"`
	MimeType   string `json:"mime_type"`
}

type ImageAnalysisResponse struct {
	AnalysisText string `json:"analysis_text"`
}

// ImageAnalysisClient calls the remote analysis worker. Every call is bounded
// by Timeout on top of the caller's context.
type ImageAnalysisClient struct {
	requester Requester
	queue     string
	timeout   time.Duration
}

func NewImageAnalysisClient(r Requester, queue string, timeout time.Duration) *ImageAnalysisClient {
	return &ImageAnalysisClient{requester: r, queue: queue, timeout: timeout}
}

func (c *ImageAnalysisClient) Analyze(ctx context.Context, req ImageAnalysisRequest) (*ImageAnalysisResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode analysis request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.requester.Request(ctx, c.queue, body)
	if err != nil {
		return nil, err
	}

	var resp ImageAnalysisResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode analysis reply: %w", err)
	}
	return &resp, nil
}
