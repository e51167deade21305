package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Session(OutcomeRejected, "NO_TOKEN")
	m.Session(OutcomeRejected, "NO_TOKEN")
	m.Rotation("ok")
	m.Login("invalid")
	m.Purged(3)
	m.Purged(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessions.WithLabelValues(OutcomeRejected, "NO_TOKEN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rotations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues("invalid")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.purged))
}

func TestInstrumentAndHandler(t *testing.T) {
	m := New(nil)

	app := fiber.New()
	app.Use(m.Instrument())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/ping", "200")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "http_requests_total"))
}
