package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/emilythestrangee/forum/backend/internal/config"
	"github.com/emilythestrangee/forum/backend/internal/handlers"
	"github.com/emilythestrangee/forum/backend/internal/metrics"
	"github.com/emilythestrangee/forum/backend/internal/middleware"
	"github.com/emilythestrangee/forum/backend/internal/voting"
)

const testSecret = "server-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubDB struct {
	status string
}

func (s stubDB) Health(context.Context) map[string]string { return map[string]string{"status": s.status} }
func (s stubDB) Close() error                             { return nil }
func (s stubDB) GetDB() *gorm.DB                          { return nil }

func newTestServer(t *testing.T, db stubDB, store *voting.MemoryStore) *gin.Engine {
	t.Helper()
	logger, _ := test.NewNullLogger()
	registry := prometheus.NewRegistry()
	svc := voting.NewService(store, voting.WithLogger(logger))

	s := &Server{
		cfg:      &config.Config{Port: "0", JWTSecret: testSecret, CORSOrigins: []string{"*"}},
		db:       db,
		handler:  handlers.NewHandler(handlers.Deps{Votes: svc, JWTSecret: []byte(testSecret), TokenTTL: time.Hour}),
		registry: registry,
		metrics:  metrics.NewHTTPMetrics(registry),
		logger:   logger,
	}
	return s.RegisterRoutes()
}

func TestHealth(t *testing.T) {
	tests := map[string]int{
		"up":   http.StatusOK,
		"down": http.StatusServiceUnavailable,
	}

	for status, want := range tests {
		t.Run(status, func(t *testing.T) {
			r := newTestServer(t, stubDB{status: status}, voting.NewMemoryStore())

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, want, rec.Code)
			assert.Contains(t, rec.Body.String(), status)
			assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestVoteRoutes_RequireAuthentication(t *testing.T) {
	store := voting.NewMemoryStore()
	store.AddTarget(voting.PostTarget(1), 0)
	r := newTestServer(t, stubDB{status: "up"}, store)

	for _, path := range []string{"/api/posts/1/vote", "/api/comments/1/vote"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("v=1"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	assert.Equal(t, 0, store.VoteCount(voting.PostTarget(1)))
}

func TestVoteRoutes_AuthenticatedVote(t *testing.T) {
	store := voting.NewMemoryStore()
	store.AddTarget(voting.PostTarget(1), 41)
	r := newTestServer(t, stubDB{status: "up"}, store)

	token, err := middleware.IssueToken([]byte(testSecret), 9, "carol", time.Hour)
	require.NoError(t, err)

	form := url.Values{"v": {"1"}}
	req := httptest.NewRequest(http.MethodPost, "/api/posts/1/vote", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `<span id="post-score-1">42</span>`, rec.Body.String())

	value, ok := store.Vote(9, voting.PostTarget(1))
	require.True(t, ok)
	assert.Equal(t, voting.Up, value)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestServer(t, stubDB{status: "up"}, voting.NewMemoryStore())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `forum_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestCORSConfig(t *testing.T) {
	s := &Server{cfg: &config.Config{CORSOrigins: []string{"https://forum.example"}}, logger: log.StandardLogger()}
	cfg := s.corsConfig()

	assert.False(t, cfg.AllowAllOrigins)
	assert.True(t, cfg.AllowCredentials)
	assert.Equal(t, []string{"https://forum.example"}, cfg.AllowOrigins)

	s.cfg.CORSOrigins = []string{"*"}
	cfg = s.corsConfig()
	assert.True(t, cfg.AllowAllOrigins)
	assert.False(t, cfg.AllowCredentials)
}
