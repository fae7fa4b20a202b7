package qa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"partnerbot/internal/domain"
	"partnerbot/internal/infra/config"
	"partnerbot/internal/infra/tracer"
)

const maxResponseBody = 1 * 1024 * 1024 // 1 MB

// noAnswer is the sentinel text knowledge-base services return for a miss.
const noAnswer = "No good match found in KB."

// Client queries a hosted knowledge base for an answer to a free-form
// question. A confident miss is an empty answer, not an error.
type Client struct {
	endpoint      string
	knowledgeBase string
	key           string
	threshold     float64
	client        *http.Client
	logger        *slog.Logger
}

// NewClient creates a knowledge base client.
func NewClient(cfg config.QAConfig, logger *slog.Logger) *Client {
	return &Client{
		endpoint:      strings.TrimRight(cfg.Endpoint, "/"),
		knowledgeBase: cfg.KnowledgeBase,
		key:           cfg.Key,
		threshold:     cfg.ScoreThreshold,
		client:        &http.Client{Timeout: cfg.Timeout},
		logger:        logger,
	}
}

// Query implements domain.QAService.
func (c *Client) Query(ctx context.Context, text string) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "qa.query")
	defer span.End()

	body, err := json.Marshal(queryRequest{Question: text})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/knowledgebases/%s/generateAnswer", c.endpoint, c.knowledgeBase)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "EndpointKey "+c.key)

	resp, err := c.client.Do(req)
	if err != nil {
		tracer.RecordError(span, err)
		return "", domain.NewDomainError("QA.Query", domain.ErrServiceFailure, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := domain.NewDomainError("QA.Query", domain.ErrServiceFailure,
			fmt.Sprintf("status %d", resp.StatusCode))
		tracer.RecordError(span, err)
		return "", err
	}

	var wire queryResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	tracer.SetOK(span)
	for _, a := range wire.Answers {
		// Scores arrive on a 0-100 scale.
		if a.Score/100 < c.threshold || a.Answer == noAnswer {
			continue
		}
		c.logger.Debug("knowledge base hit", "score", a.Score)
		return a.Answer, nil
	}
	return "", nil
}

// --- knowledge base API wire types ---

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	Answers []struct {
		Answer string  `json:"answer"`
		Score  float64 `json:"score"`
	} `json:"answers"`
}
