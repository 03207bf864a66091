package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amedis-online/booking-agent/internal/amedis"
	"github.com/amedis-online/booking-agent/internal/har"
	"github.com/amedis-online/booking-agent/internal/kb"
)

type fakeUpstream struct {
	baseURL string

	lastToken     string
	lastDirection string
	createParams  amedis.CreateRecordParams
	cancelledID   string
	cancelStatus  string

	doctorsErr error
}

func (f *fakeUpstream) DiscoverDirections(ctx context.Context, token string) amedis.DirectionsResult {
	f.lastToken = token
	return amedis.DirectionsResult{
		EndpointUsed: "/directions",
		Directions:   []amedis.Direction{{ID: "1", Name: "Therapy"}},
	}
}

func (f *fakeUpstream) GetDoctors(ctx context.Context, token, directionID string) ([]amedis.Doctor, error) {
	f.lastToken = token
	f.lastDirection = directionID
	if f.doctorsErr != nil {
		return nil, f.doctorsErr
	}
	return []amedis.Doctor{{ID: "12", Name: "Dr. Ivanova"}}, nil
}

func (f *fakeUpstream) GetServiceDurations(ctx context.Context, token, directionID string) []amedis.Service {
	f.lastToken = token
	dur := 30
	return []amedis.Service{{ID: "5", Name: "ECG", DurationMinutes: &dur}}
}

func (f *fakeUpstream) GetSchedule(ctx context.Context, token, doctorID, dateStart, dateEnd, serviceID string) ([]amedis.Slot, error) {
	f.lastToken = token
	return []amedis.Slot{{StartAt: "2024-01-01 09:00", EndAt: "09:30"}}, nil
}

func (f *fakeUpstream) CreateRecord(ctx context.Context, p amedis.CreateRecordParams) (*amedis.BookingResult, error) {
	f.createParams = p
	return &amedis.BookingResult{StatusCode: 200, Data: map[string]any{"id": "900"}}, nil
}

func (f *fakeUpstream) ListPatientRecords(ctx context.Context, token, patientAPIID string) ([]amedis.Record, error) {
	f.lastToken = token
	return []amedis.Record{{RecordID: "100", StartAt: "2024-01-01 09:00"}}, nil
}

func (f *fakeUpstream) CancelRecord(ctx context.Context, token, recordID, status string) (*amedis.BookingResult, error) {
	f.lastToken = token
	f.cancelledID = recordID
	f.cancelStatus = status
	return &amedis.BookingResult{StatusCode: 200, Data: "ok"}, nil
}

func newTestRegistry(t *testing.T) (*Registry, *fakeUpstream, *[]string) {
	t.Helper()
	upstream := &fakeUpstream{}
	var baseURLs []string
	factory := func(baseURL string) Upstream {
		baseURLs = append(baseURLs, baseURL)
		upstream.baseURL = baseURL
		return upstream
	}
	return NewRegistry(factory, WithGuestToken("guest-token")), upstream, &baseURLs
}

func TestInvokeDefaultsToGuestToken(t *testing.T) {
	registry, upstream, _ := newTestRegistry(t)

	out, err := registry.Invoke(context.Background(), ToolGetDirections, nil)
	require.NoError(t, err)
	assert.Equal(t, "guest-token", upstream.lastToken)

	result, ok := out.(amedis.DirectionsResult)
	require.True(t, ok)
	assert.Equal(t, "/directions", result.EndpointUsed)
}

func TestInvokePassesExplicitTokenAndBaseURL(t *testing.T) {
	registry, upstream, baseURLs := newTestRegistry(t)

	input := json.RawMessage(`{"token":"patient-token","base_url":"https://staging.example","direction_id":"2"}`)
	out, err := registry.Invoke(context.Background(), ToolGetDoctors, input)
	require.NoError(t, err)

	assert.Equal(t, "patient-token", upstream.lastToken)
	assert.Equal(t, "2", upstream.lastDirection)
	assert.Equal(t, []string{"https://staging.example"}, *baseURLs)

	doctors, ok := out.(DoctorsOutput)
	require.True(t, ok)
	require.Len(t, doctors.Doctors, 1)
	assert.Equal(t, "12", doctors.Doctors[0].ID)
}

func TestInvokeCreateRecordMapsFields(t *testing.T) {
	registry, upstream, _ := newTestRegistry(t)

	input := json.RawMessage(`{
		"doctor_id": "12",
		"patient_id": "42",
		"start_at": "2024-01-01 09:00",
		"end_at": "2024-01-01 09:30",
		"description": "checkup",
		"insurer": "Acme",
		"extra": {"officeId": "off-1"}
	}`)
	out, err := registry.Invoke(context.Background(), ToolCreateRecord, input)
	require.NoError(t, err)

	assert.Equal(t, "12", upstream.createParams.DoctorID)
	assert.Equal(t, "42", upstream.createParams.PatientID)
	assert.Equal(t, "guest-token", upstream.createParams.Token)
	assert.Equal(t, "Acme", upstream.createParams.Insurer)
	assert.Equal(t, map[string]string{"officeId": "off-1"}, upstream.createParams.Extra)

	result, ok := out.(*amedis.BookingResult)
	require.True(t, ok)
	assert.Equal(t, 200, result.StatusCode)
}

func TestInvokeCancelRecordDefaultsStatus(t *testing.T) {
	registry, upstream, _ := newTestRegistry(t)

	_, err := registry.Invoke(context.Background(), ToolCancelRecord, json.RawMessage(`{"record_id":"100"}`))
	require.NoError(t, err)
	assert.Equal(t, "100", upstream.cancelledID)
	assert.Equal(t, "", upstream.cancelStatus)
}

func TestInvokeUnknownTool(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	_, err := registry.Invoke(context.Background(), "no_such_tool", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestInvokeOperationErrorSurfaces(t *testing.T) {
	registry, upstream, _ := newTestRegistry(t)
	upstream.doctorsErr = assert.AnError

	_, err := registry.Invoke(context.Background(), ToolGetDoctors, nil)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestInvokeRejectsMalformedInput(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	_, err := registry.Invoke(context.Background(), ToolGetSchedule, json.RawMessage(`{"doctor_id": 7}`))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestInvokeHARAutofillMissingFileIsSoftMiss(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	out, err := registry.Invoke(context.Background(), ToolHARAutofill, json.RawMessage(`{"path":"/nonexistent.har"}`))
	require.NoError(t, err)
	result, ok := out.(har.Result)
	require.True(t, ok)
	assert.Empty(t, result.PatientIDs)
}

func TestResolveEntityRequiresKB(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	assert.NotContains(t, registry.Names(), ToolResolveEntity)

	_, err := registry.Invoke(context.Background(), ToolResolveEntity, json.RawMessage(`{"phrase":"ecg"}`))
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestResolveEntityWithKB(t *testing.T) {
	knowledge, err := kb.Parse([]byte(`{
		"entities": {
			"directions": {"1": {"direction_name": "Therapy"}},
			"services": {"5": {"service_name": "ECG"}},
			"doctors": {}
		},
		"index": {
			"by_direction": {"1": ["5"]},
			"by_service": {"5": []},
			"doctor_to_services": {},
			"doctor_to_directions": {}
		}
	}`))
	require.NoError(t, err)

	upstream := &fakeUpstream{}
	registry := NewRegistry(func(string) Upstream { return upstream }, WithKB(knowledge))
	assert.Contains(t, registry.Names(), ToolResolveEntity)

	out, err := registry.Invoke(context.Background(), ToolResolveEntity, json.RawMessage(`{"phrase":"ecg"}`))
	require.NoError(t, err)
	resolved, ok := out.(ResolveOutput)
	require.True(t, ok)
	require.True(t, resolved.Found)
	assert.Equal(t, kb.KindService, resolved.Entity.Kind)
	assert.Equal(t, "5", resolved.Entity.ID)

	out, err = registry.Invoke(context.Background(), ToolResolveEntity, json.RawMessage(`{"phrase":"unknown thing"}`))
	require.NoError(t, err)
	resolved, ok = out.(ResolveOutput)
	require.True(t, ok)
	assert.False(t, resolved.Found)
}
