package qa

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partnerbot/internal/domain"
	"partnerbot/internal/infra/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newQAFixture(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.QAConfig{
		Endpoint:       srv.URL,
		KnowledgeBase:  "kb-1",
		Key:            "key-1",
		ScoreThreshold: 0.5,
		Timeout:        5 * time.Second,
	}, testLogger())
}

func TestQueryAnswered(t *testing.T) {
	c := newQAFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/knowledgebases/kb-1/generateAnswer", r.URL.Path)
		assert.Equal(t, "EndpointKey key-1", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"answers":[{"answer":"Reset it from the portal.","score":87.5}]}`)
	})

	got, err := c.Query(context.Background(), "how do I reset a password")
	require.NoError(t, err)
	assert.Equal(t, "Reset it from the portal.", got)
}

func TestQueryLowScoreIsMiss(t *testing.T) {
	c := newQAFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"answers":[{"answer":"maybe this","score":12.0}]}`)
	})

	got, err := c.Query(context.Background(), "gibberish")
	require.NoError(t, err, "a confident miss is not an error")
	assert.Empty(t, got)
}

func TestQueryNoMatchSentinel(t *testing.T) {
	c := newQAFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"answers":[{"answer":"No good match found in KB.","score":100}]}`)
	})

	got, err := c.Query(context.Background(), "gibberish")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryServerError(t *testing.T) {
	c := newQAFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Query(context.Background(), "anything")
	assert.ErrorIs(t, err, domain.ErrServiceFailure)
}
