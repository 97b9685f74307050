package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newLoggedApp(t *testing.T) (*fiber.App, *observer.ObservedLogs, *Metrics) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	metrics := NewMetrics(prometheus.NewRegistry())

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), metrics))
	app.Get("/ok/:id", func(c *fiber.Ctx) error {
		return c.SendString(RequestID(c))
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusInternalServerError)
	})
	return app, logs, metrics
}

func TestRequestLogger_GeneratesID(t *testing.T) {
	app, logs, metrics := newLoggedApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok/7", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	id := resp.Header.Get(fiber.HeaderXRequestID)
	_, err = ulid.ParseStrict(id)
	require.NoError(t, err)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zap.InfoLevel, entry.Level)
	assert.Equal(t, id, entry.ContextMap()["request_id"])

	assert.Equal(t, 1, testutil.CollectAndCount(metrics.requests))
}

func TestRequestLogger_KeepsIncomingID(t *testing.T) {
	app, _, _ := newLoggedApp(t)

	req := httptest.NewRequest(http.MethodGet, "/ok/1", nil)
	req.Header.Set(fiber.HeaderXRequestID, "upstream-42")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "upstream-42", resp.Header.Get(fiber.HeaderXRequestID))
}

func TestRequestLogger_ErrorLevel(t *testing.T) {
	app, logs, _ := newLoggedApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zap.ErrorLevel, logs.All()[0].Level)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, 0)
		m.RecordError("/", "GET", "X")
		m.RecordAuthOutcome("login", "success")
		m.RecordInterception("anonymous")
	})
}
