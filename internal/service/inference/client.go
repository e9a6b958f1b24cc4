package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"detectdemo/internal/config"
	"detectdemo/internal/dto"
	"detectdemo/internal/logger"
	"detectdemo/internal/model"
)

const (
	predictPath     = "/predict"
	maxResponseSize = 64 << 20
)

// Client sends images to the remote detection endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logger.Logger
}

// NewClient creates a Client for config.InferenceURL. A zero timeout waits
// for the service indefinitely.
func NewClient(config *config.Config, logger *logger.Logger) *Client {
	return NewClientWithHTTP(config.InferenceURL, &http.Client{
		Timeout: time.Duration(config.InferenceTimeout) * time.Second,
	}, logger)
}

// NewClientWithHTTP lets callers supply their own http.Client.
func NewClientWithHTTP(baseURL string, httpClient *http.Client, logger *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		logger:  logger,
	}
}

// Infer posts blob as the multipart field "file" and parses the result.
func (c *Client) Infer(ctx context.Context, blob model.ImageBlob) (*model.DetectionResult, error) {
	body, contentType, err := encodeMultipart(blob)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+predictPath, body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("Inference request for %s failed: %v", blob.Name, err)
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var out dto.PredictResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Error("Inference response for %s is not JSON (status %d): %v", blob.Name, resp.StatusCode, err)
		return nil, &NetworkError{Err: fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)}
	}

	if !out.Success {
		c.logger.Warning("Inference service rejected %s: %q", blob.Name, out.Error)
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: out.Error}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	result, err := c.toResult(out)
	if err != nil {
		c.logger.Error("Malformed inference response for %s: %v", blob.Name, err)
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: err.Error()}
	}

	c.logger.Info("Inference for %s (%d bytes): %d detections in %v", blob.Name, len(blob.Data), len(result.Detections), time.Since(start))
	return result, nil
}

// Health reports whether the base URL answers at all.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return &NetworkError{Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	resp.Body.Close()
	return nil
}

func (c *Client) toResult(out dto.PredictResponse) (*model.DetectionResult, error) {
	image, err := base64.StdEncoding.DecodeString(out.Image)
	if err != nil {
		return nil, fmt.Errorf("invalid image payload: %v", err)
	}

	detections := make([]model.Detection, 0, len(out.Detections))
	for i, d := range out.Detections {
		if len(d.BBox) != 4 {
			return nil, fmt.Errorf("detection %d: bbox has %d values", i, len(d.BBox))
		}
		if d.Confidence < 0 || d.Confidence > 1 {
			return nil, fmt.Errorf("detection %d: confidence %.3f out of range", i, d.Confidence)
		}
		detections = append(detections, model.Detection{
			Class:      d.Class,
			Confidence: d.Confidence,
			BBox:       [4]float64{d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3]},
		})
	}

	// Counts always follow the detections.
	counts := model.CountDetections(detections)
	if !sameCounts(counts, out.Counts) {
		c.logger.Warning("Service counts %v disagree with detections, using %v", out.Counts, counts)
	}

	return &model.DetectionResult{
		Image:      image,
		Counts:     counts,
		Detections: detections,
	}, nil
}

func sameCounts(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func encodeMultipart(blob model.ImageBlob) (io.Reader, string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	name := blob.Name
	if name == "" {
		name = "image.jpg"
	}
	contentType := blob.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(blob.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &body, w.FormDataContentType(), nil
}
