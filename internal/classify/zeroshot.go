package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrUnavailable marks a zero-shot backend that cannot be reached at all,
// as opposed to one that failed while processing a request.
var ErrUnavailable = errors.New("zero-shot backend unavailable")

// LabelScore is one scored candidate label.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ZeroShot scores a text against candidate label phrases.
//
// Implementations must be safe for concurrent use; the classifier shares
// one backend handle across calls.
type ZeroShot interface {
	Classify(ctx context.Context, text string, labels []string) ([]LabelScore, error)
}

// HTTPBackend talks to an inference-API zero-shot classification endpoint.
//
// The wire format is the common hosted-inference shape: the request carries
// the text plus candidate labels, the response returns parallel label and
// score arrays sorted by descending score.
type HTTPBackend struct {
	url    string
	apiKey string
	client *http.Client
	log    *logrus.Logger
}

// NewHTTPBackend creates a backend for the given endpoint URL. apiKey may
// be empty for unauthenticated endpoints; a nil client gets a 45s-timeout
// default.
func NewHTTPBackend(url, apiKey string, client *http.Client, log *logrus.Logger) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &HTTPBackend{url: url, apiKey: apiKey, client: client, log: log}
}

// Warmup checks that the endpoint is reachable. Any HTTP response counts
// as reachable; inference endpoints commonly reject plain GETs but a
// rejection still proves the service is up.
func (b *HTTPBackend) Warmup(ctx context.Context) error {
	if b.url == "" {
		return ErrUnavailable
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return fmt.Errorf("build warmup request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp.Body.Close()
}

type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

type zeroShotParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
}

type zeroShotResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// Classify posts the text and candidate labels to the endpoint.
func (b *HTTPBackend) Classify(ctx context.Context, text string, labels []string) ([]LabelScore, error) {
	if b.url == "" {
		return nil, ErrUnavailable
	}

	reqID := uuid.New().String()
	start := time.Now()

	body, err := json.Marshal(zeroShotRequest{
		Inputs:     text,
		Parameters: zeroShotParameters{CandidateLabels: labels},
	})
	if err != nil {
		return nil, fmt.Errorf("encode zero-shot request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build zero-shot request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	b.log.WithFields(logrus.Fields{
		"req_id": reqID,
		"labels": len(labels),
		"chars":  len(text),
	}).Debug("zero-shot request")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			b.log.WithError(cerr).WithField("req_id", reqID).Warn("close zero-shot response body")
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read zero-shot response: %w", err)
	}

	b.log.WithFields(logrus.Fields{
		"req_id":     reqID,
		"status":     resp.StatusCode,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Debug("zero-shot response")

	if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusBadGateway {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("zero-shot backend returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed zeroShotResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode zero-shot response: %w", err)
	}
	if len(parsed.Labels) != len(parsed.Scores) {
		return nil, fmt.Errorf("zero-shot response has %d labels but %d scores", len(parsed.Labels), len(parsed.Scores))
	}

	ranked := make([]LabelScore, len(parsed.Labels))
	for i, label := range parsed.Labels {
		ranked[i] = LabelScore{Label: label, Score: parsed.Scores[i]}
	}
	return ranked, nil
}
