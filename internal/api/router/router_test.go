package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amedis-online/booking-agent/internal/amedis"
	"github.com/amedis-online/booking-agent/internal/flow"
	"github.com/amedis-online/booking-agent/internal/http/handlers"
	"github.com/amedis-online/booking-agent/internal/session"
	"github.com/amedis-online/booking-agent/internal/tools"
	"github.com/amedis-online/booking-agent/internal/webchat"
)

type noopUpstream struct{}

func (noopUpstream) DiscoverDirections(ctx context.Context, token string) amedis.DirectionsResult {
	return amedis.DirectionsResult{}
}

func (noopUpstream) GetDoctors(ctx context.Context, token, directionID string) ([]amedis.Doctor, error) {
	return nil, nil
}

func (noopUpstream) GetServiceDurations(ctx context.Context, token, directionID string) []amedis.Service {
	return nil
}

func (noopUpstream) GetSchedule(ctx context.Context, token, doctorID, dateStart, dateEnd, serviceID string) ([]amedis.Slot, error) {
	return nil, nil
}

func (noopUpstream) CreateRecord(ctx context.Context, p amedis.CreateRecordParams) (*amedis.BookingResult, error) {
	return &amedis.BookingResult{StatusCode: 200}, nil
}

func (noopUpstream) ListPatientRecords(ctx context.Context, token, patientAPIID string) ([]amedis.Record, error) {
	return nil, nil
}

func (noopUpstream) CancelRecord(ctx context.Context, token, recordID, status string) (*amedis.BookingResult, error) {
	return &amedis.BookingResult{StatusCode: 200}, nil
}

type staticResponder struct{}

func (staticResponder) Handle(ctx context.Context, s *flow.State, message string) string {
	return "hello"
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	registry := tools.NewRegistry(func(string) tools.Upstream { return noopUpstream{} })
	return New(&Config{
		ToolsHandler:   handlers.NewToolsHandler(registry, nil),
		Webchat:        webchat.NewHandler(staticResponder{}, session.NewMemoryStore(), nil),
		MetricsHandler: promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}),
	})
}

func TestRouterRoutes(t *testing.T) {
	server := httptest.NewServer(newTestHandler(t))
	defer server.Close()

	for _, tc := range []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/tools/", http.StatusOK},
		{http.MethodPost, "/tools/get_directions", http.StatusOK},
		{http.MethodGet, "/unknown", http.StatusNotFound},
	} {
		req, err := http.NewRequest(tc.method, server.URL+tc.path, nil)
		require.NoError(t, err)
		resp, err := server.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tc.want, resp.StatusCode, "%s %s", tc.method, tc.path)
	}
}

func TestRouterWithoutOptionalHandlers(t *testing.T) {
	server := httptest.NewServer(New(&Config{}))
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
