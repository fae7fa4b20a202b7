package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"partnerbot/internal/domain"
	"partnerbot/internal/infra/config"
	"partnerbot/internal/infra/tracer"
)

// maxResponseBody bounds how much classifier output we read.
const maxResponseBody = 1 * 1024 * 1024 // 1 MB

// Client calls an intent classification endpoint that scores an utterance
// against a trained application and returns the top intent plus entities.
type Client struct {
	endpoint string
	appID    string
	key      string
	client   *http.Client
	logger   *slog.Logger
}

// NewClient creates a classifier client with configured timeouts.
func NewClient(cfg config.NLUConfig, logger *slog.Logger) *Client {
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		appID:    cfg.AppID,
		key:      cfg.Key,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

// Classify implements domain.NLUService.
func (c *Client) Classify(ctx context.Context, text string) (domain.NLUResult, error) {
	ctx, span := tracer.StartSpan(ctx, "nlu.classify")
	defer span.End()

	q := url.Values{}
	q.Set("q", text)
	reqURL := fmt.Sprintf("%s/apps/%s?%s", c.endpoint, url.PathEscape(c.appID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.NLUResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := c.client.Do(req)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.NLUResult{}, domain.NewDomainError("NLU.Classify", domain.ErrServiceFailure, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		tracer.RecordError(span, err)
		return domain.NLUResult{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := domain.NewDomainError("NLU.Classify", domain.ErrServiceFailure,
			fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(body, 200)))
		tracer.RecordError(span, err)
		return domain.NLUResult{}, err
	}

	var wire classifyResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		tracer.RecordError(span, err)
		return domain.NLUResult{}, fmt.Errorf("unmarshal response: %w", err)
	}

	result := wire.toDomain()
	c.logger.Debug("utterance classified", "intent", result.Intent, "score", result.Score)
	tracer.SetOK(span)
	return result, nil
}

// --- classifier API wire types ---

type classifyResponse struct {
	Query            string       `json:"query"`
	TopScoringIntent *wireIntent  `json:"topScoringIntent"`
	Entities         []wireEntity `json:"entities"`
}

type wireIntent struct {
	Intent string  `json:"intent"`
	Score  float64 `json:"score"`
}

type wireEntity struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
}

func (r classifyResponse) toDomain() domain.NLUResult {
	out := domain.NLUResult{}
	if r.TopScoringIntent != nil {
		out.Intent = r.TopScoringIntent.Intent
		out.Score = r.TopScoringIntent.Score
	}
	for _, e := range r.Entities {
		out.Entities = append(out.Entities, domain.Entity{Type: e.Type, Value: e.Entity})
	}
	return out
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
