// Package extract talks to the external face detection and embedding
// capability. The core never computes embeddings itself; it only consumes
// the (vector, confidence) pairs this capability returns.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const defaultExtractorURL = "http://localhost:8000"

// Face is one detected face: its embedding vector and the detector's
// confidence. Confidence is pass-through metadata and plays no part in
// similarity computation.
type Face struct {
	Vector     []float32 `json:"embedding"`
	Confidence float32   `json:"confidence"`
}

// Extractor detects faces in photo bytes and returns zero or more
// embeddings. Zero faces is a normal outcome, not an error.
type Extractor interface {
	Extract(ctx context.Context, imageData []byte) ([]Face, error)
}

// Client calls a face extraction HTTP server.
type Client struct {
	baseURL string
	client  *http.Client
}

var _ Extractor = (*Client)(nil)

// NewClient creates an extraction client for the given server URL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultExtractorURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// extractResponse is the extraction server's reply.
type extractResponse struct {
	Faces []Face `json:"faces"`
	Dim   int    `json:"dim"`
}

// Extract posts the image to the extraction server and returns the
// detected faces.
func (c *Client) Extract(ctx context.Context, imageData []byte) ([]Face, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract/faces", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction error (status %d): %s", resp.StatusCode, string(body))
	}

	var extracted extractResponse
	if err := json.Unmarshal(body, &extracted); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return extracted.Faces, nil
}
