// Package amedis is a client for the Amedis online appointment backend.
// The backend is loosely typed and its TLS stack is legacy, so the client
// pairs a lenient transport with best-effort response normalization.
package amedis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amedis-online/booking-agent/internal/observability/metrics"
	"github.com/amedis-online/booking-agent/pkg/logging"
)

const (
	// DefaultBaseURL is the production Amedis backend.
	DefaultBaseURL = "https://online.amedis.by:4422"

	// DefaultGuestToken is the backend's shared anonymous access token,
	// accepted for read-only calls when a patient token is not known.
	DefaultGuestToken = "Q9j87S4FV12e86475e82V5d44S7c2c2bb_35"

	defaultTimeout = 20 * time.Second

	// CancelStatus is the default status code sent on cancellation.
	CancelStatus = "CAN"

	errorBodyLimit   = 400
	bookingBodyLimit = 800
)

// DirectionsCandidates are probed in order; the backend has exposed the
// directions listing under different paths across deployments.
var DirectionsCandidates = []string{
	"/directions",
	"/direction",
	"/directions/all",
	"/direction/all",
	"/getDirections",
	"/records/directions",
}

const (
	doctorsPath        = "/doctors"
	schedulePath       = "/doctors/schedule"
	serviceDurPath     = "/serviceduration"
	recordCreatePath   = "/record/create"
	recordStatusPath   = "/record/change-status"
	patientRecordsPath = "/patient/recordsbyid"
)

// Client talks to the Amedis backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	metrics    *metrics.UpstreamMetrics
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the backend base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithTimeout overrides the per-call network timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient swaps the underlying HTTP client (used by tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMetrics attaches upstream request metrics.
func WithMetrics(m *metrics.UpstreamMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a new Amedis API client.
func NewClient(logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: lenientTransport(),
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// lenientTransport accepts the backend's legacy TLS stack: self-signed
// certificate chain, TLS 1.0, HTTP/1.1 only.
func lenientTransport() *http.Transport {
	return &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, // the backend's chain does not validate
			MinVersion:         tls.VersionTLS10,
		},
		ForceAttemptHTTP2: false,
		TLSNextProto:      map[string]func(string, *tls.Conn) http.RoundTripper{},
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (int, []byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("amedis: build request: %w", err)
	}
	return c.do(req, path)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("amedis: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, path)
}

func (c *Client) do(req *http.Request, path string) (int, []byte, error) {
	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(path, "error", time.Since(started).Seconds())
		return 0, nil, fmt.Errorf("amedis: %s %s: %w", req.Method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRequest(path, strconv.Itoa(resp.StatusCode), time.Since(started).Seconds())
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("amedis: read response from %s: %w", path, err)
	}
	return resp.StatusCode, body, nil
}

// decodeBody parses a response body as JSON, falling back to wrapping the
// raw text so callers always get something inspectable.
func decodeBody(body []byte) any {
	var data any
	if err := json.Unmarshal(body, &data); err == nil {
		return data
	}
	return map[string]any{"raw": string(body)}
}

func truncate(body []byte, limit int) string {
	s := string(body)
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

// DiscoverDirections probes the candidate endpoints in order and returns on
// the first one that answers 200 with a non-empty normalized list. When none
// do, the result carries a manual-entry hint instead of an error.
func (c *Client) DiscoverDirections(ctx context.Context, token string) DirectionsResult {
	for _, endpoint := range DirectionsCandidates {
		status, body, err := c.get(ctx, endpoint, url.Values{"token": {token}})
		if err != nil {
			c.logger.Debug("directions probe failed", "endpoint", endpoint, "error", err)
			continue
		}
		if status != http.StatusOK {
			continue
		}
		rows := NormalizeDirections(decodeBody(body))
		if len(rows) > 0 {
			return DirectionsResult{EndpointUsed: endpoint, Directions: rows}
		}
	}
	return DirectionsResult{
		Hint: "Could not fetch the directions list automatically. Enter a direction ID manually.",
	}
}

// GetDoctors lists doctors, optionally filtered by direction.
func (c *Client) GetDoctors(ctx context.Context, token, directionID string) ([]Doctor, error) {
	params := url.Values{"token": {token}}
	if directionID != "" {
		params.Set("idDirection", directionID)
	}
	status, body, err := c.get(ctx, doctorsPath, params)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("amedis: doctors error %d: %s", status, truncate(body, errorBodyLimit))
	}
	return NormalizeDoctors(decodeBody(body)), nil
}

// GetServiceDurations lists a direction's services with durations. Duration
// info is best-effort: a missing direction id or any failure yields an
// empty list, never an error.
func (c *Client) GetServiceDurations(ctx context.Context, token, directionID string) []Service {
	if directionID == "" {
		return nil
	}
	status, body, err := c.get(ctx, serviceDurPath, url.Values{
		"token":       {token},
		"idDirection": {directionID},
	})
	if err != nil {
		c.logger.Debug("service durations unavailable", "direction", directionID, "error", err)
		return nil
	}
	if status != http.StatusOK {
		return nil
	}
	return NormalizeServices(decodeBody(body))
}

// GetSchedule lists free slots for a doctor in a date range (DD.MM.YYYY).
func (c *Client) GetSchedule(ctx context.Context, token, doctorID, dateStart, dateEnd, serviceID string) ([]Slot, error) {
	params := url.Values{
		"token":     {token},
		"doctorIds": {doctorID},
		"startDate": {dateStart},
		"endDate":   {dateEnd},
	}
	if serviceID != "" {
		params.Set("serviceId", serviceID)
	}
	status, body, err := c.get(ctx, schedulePath, params)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("amedis: schedule error %d: %s", status, truncate(body, errorBodyLimit))
	}
	return NormalizeSlots(decodeBody(body)), nil
}

// CreateRecordParams are the fields posted to /record/create. Extra carries
// backend-specific fields such as officeId/cabinetId pulled from a slot.
type CreateRecordParams struct {
	Token       string
	DoctorID    string
	PatientID   string
	StartAt     string
	EndAt       string
	Description string
	Insurer     string
	Extra       map[string]string
}

// CreateRecord posts a booking. A non-200 answer is an expected rejection
// and comes back as a structured result carrying the parsed-or-raw error
// body plus the exact form sent; only transport failures return a Go error.
func (c *Client) CreateRecord(ctx context.Context, p CreateRecordParams) (*BookingResult, error) {
	sent := map[string]string{
		"token":       p.Token,
		"doctor":      p.DoctorID,
		"patient":     p.PatientID,
		"startAt":     p.StartAt,
		"endAt":       p.EndAt,
		"description": p.Description,
		"Ins_name":    p.Insurer,
	}
	for key, value := range p.Extra {
		if value != "" {
			sent[key] = value
		}
	}
	form := url.Values{}
	for key, value := range sent {
		form.Set(key, value)
	}

	status, body, err := c.postForm(ctx, recordCreatePath, form)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		var payload any
		if json.Unmarshal(body, &payload) != nil {
			payload = truncate(body, bookingBodyLimit)
		}
		return &BookingResult{StatusCode: status, Error: payload, Sent: sent}, nil
	}
	return &BookingResult{StatusCode: status, Data: decodeBody(body), Sent: sent}, nil
}

// ListPatientRecords lists a patient's bookings.
func (c *Client) ListPatientRecords(ctx context.Context, token, patientAPIID string) ([]Record, error) {
	status, body, err := c.get(ctx, patientRecordsPath, url.Values{
		"token":        {token},
		"patientAPIId": {patientAPIID},
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("amedis: patient records error %d: %s", status, truncate(body, errorBodyLimit))
	}
	return NormalizeRecords(decodeBody(body)), nil
}

// CancelRecord changes a record's status (default CAN). Patient identifiers
// are deliberately not sent; /record/change-status does not expect them.
func (c *Client) CancelRecord(ctx context.Context, token, recordID, cancelStatus string) (*BookingResult, error) {
	if cancelStatus == "" {
		cancelStatus = CancelStatus
	}
	sent := map[string]string{
		"token":    token,
		"recordId": recordID,
		"status":   cancelStatus,
	}
	form := url.Values{}
	for key, value := range sent {
		form.Set(key, value)
	}
	status, body, err := c.postForm(ctx, recordStatusPath, form)
	if err != nil {
		return nil, err
	}
	return &BookingResult{StatusCode: status, Data: decodeBody(body), Sent: sent}, nil
}
