// Package tools exposes the Amedis domain operations as named callables
// with typed JSON input and output envelopes, so an external agent runtime
// can invoke them without knowing the upstream client.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/amedis-online/booking-agent/internal/amedis"
	"github.com/amedis-online/booking-agent/internal/har"
	"github.com/amedis-online/booking-agent/internal/kb"
	"github.com/amedis-online/booking-agent/pkg/logging"
)

// ErrUnknownTool is returned when Invoke is asked for a name the registry
// does not carry.
var ErrUnknownTool = errors.New("tools: unknown tool")

// ErrInvalidInput is returned when a tool input envelope does not decode.
var ErrInvalidInput = errors.New("tools: invalid input")

// Upstream is the slice of the Amedis client the tools need.
type Upstream interface {
	DiscoverDirections(ctx context.Context, token string) amedis.DirectionsResult
	GetDoctors(ctx context.Context, token, directionID string) ([]amedis.Doctor, error)
	GetServiceDurations(ctx context.Context, token, directionID string) []amedis.Service
	GetSchedule(ctx context.Context, token, doctorID, dateStart, dateEnd, serviceID string) ([]amedis.Slot, error)
	CreateRecord(ctx context.Context, p amedis.CreateRecordParams) (*amedis.BookingResult, error)
	ListPatientRecords(ctx context.Context, token, patientAPIID string) ([]amedis.Record, error)
	CancelRecord(ctx context.Context, token, recordID, status string) (*amedis.BookingResult, error)
}

// Factory builds an upstream client for a base URL. An empty base URL means
// the configured default backend.
type Factory func(baseURL string) Upstream

// Registry dispatches tool calls by name.
type Registry struct {
	factory    Factory
	guestToken string
	harPath    string
	kb         *kb.KB
	logger     *logging.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithGuestToken overrides the token used when a call carries none.
func WithGuestToken(token string) Option {
	return func(r *Registry) {
		if token != "" {
			r.guestToken = token
		}
	}
}

// WithHARPath sets the default capture file for the HAR autofill tool.
func WithHARPath(path string) Option {
	return func(r *Registry) {
		r.harPath = path
	}
}

// WithKB enables the knowledge-base resolution tool.
func WithKB(knowledge *kb.KB) Option {
	return func(r *Registry) {
		r.kb = knowledge
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates a tool registry.
func NewRegistry(factory Factory, opts ...Option) *Registry {
	if factory == nil {
		panic("tools: factory cannot be nil")
	}
	r := &Registry{
		factory:    factory,
		guestToken: amedis.DefaultGuestToken,
		logger:     logging.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CallInput is embedded in every tool input. BaseURL switches backends per
// call; Token falls back to the guest token when empty.
type CallInput struct {
	BaseURL string `json:"base_url,omitempty"`
	Token   string `json:"token,omitempty"`
}

type DirectionsInput struct {
	CallInput
}

type DoctorsInput struct {
	CallInput
	DirectionID string `json:"direction_id,omitempty"`
}

type DoctorsOutput struct {
	Doctors []amedis.Doctor `json:"doctors"`
}

type ServiceDurationsInput struct {
	CallInput
	DirectionID string `json:"direction_id"`
}

type ServiceDurationsOutput struct {
	Services []amedis.Service `json:"services"`
}

type ScheduleInput struct {
	CallInput
	DoctorID  string `json:"doctor_id"`
	DateStart string `json:"date_start"`
	DateEnd   string `json:"date_end"`
	ServiceID string `json:"service_id,omitempty"`
}

type ScheduleOutput struct {
	Slots []amedis.Slot `json:"slots"`
}

type CreateRecordInput struct {
	CallInput
	DoctorID    string            `json:"doctor_id"`
	PatientID   string            `json:"patient_id"`
	StartAt     string            `json:"start_at"`
	EndAt       string            `json:"end_at"`
	Description string            `json:"description,omitempty"`
	Insurer     string            `json:"insurer,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

type PatientRecordsInput struct {
	CallInput
	PatientAPIID string `json:"patient_api_id"`
}

type PatientRecordsOutput struct {
	Records []amedis.Record `json:"records"`
}

type CancelRecordInput struct {
	CallInput
	RecordID string `json:"record_id"`
	Status   string `json:"status,omitempty"`
}

type HARAutofillInput struct {
	Path string `json:"path,omitempty"`
}

type ResolveInput struct {
	Phrase string `json:"phrase"`
}

type ResolveOutput struct {
	Found     bool          `json:"found"`
	Entity    *kb.Entity    `json:"entity,omitempty"`
	Expansion *kb.Expansion `json:"expansion,omitempty"`
}

// Tool names accepted by Invoke.
const (
	ToolGetDirections       = "get_directions"
	ToolGetDoctors          = "get_doctors"
	ToolGetServiceDurations = "get_service_durations"
	ToolGetSchedule         = "get_schedule"
	ToolCreateRecord        = "create_record"
	ToolListPatientRecords  = "list_patient_records"
	ToolCancelRecord        = "cancel_record"
	ToolHARAutofill         = "har_autofill"
	ToolResolveEntity       = "resolve_entity"
)

// Names lists the tools this registry will dispatch.
func (r *Registry) Names() []string {
	names := []string{
		ToolGetDirections,
		ToolGetDoctors,
		ToolGetServiceDurations,
		ToolGetSchedule,
		ToolCreateRecord,
		ToolListPatientRecords,
		ToolCancelRecord,
		ToolHARAutofill,
	}
	if r.kb != nil {
		names = append(names, ToolResolveEntity)
	}
	return names
}

// Invoke runs the named tool with a JSON input envelope. Operation failures
// surface as errors; booking rejections come back as ordinary results.
func (r *Registry) Invoke(ctx context.Context, name string, input json.RawMessage) (any, error) {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	switch name {
	case ToolGetDirections:
		var in DirectionsInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, name, err)
		}
		return r.client(in.CallInput).DiscoverDirections(ctx, r.token(in.CallInput)), nil

	case ToolGetDoctors:
		var in DoctorsInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, name, err)
		}
		doctors, err := r.client(in.CallInput).GetDoctors(ctx, r.token(in.CallInput), in.DirectionID)
		if err != nil {
			return nil, err
		}
		return DoctorsOutput{Doctors: doctors}, nil

	case ToolGetServiceDurations:
		var in ServiceDurationsInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, name, err)
		}
		services := r.client(in.CallInput).GetServiceDurations(ctx, r.token(in.CallInput), in.DirectionID)
		return ServiceDurationsOutput{Services: services}, nil

	case ToolGetSchedule:
		var in ScheduleInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, name, err)
		}
		slots, err := r.client(in.CallInput).GetSchedule(ctx, r.token(in.CallInput), in.DoctorID, in.DateStart, in.DateEnd, in.ServiceID)
		if err != nil {
			return nil, err
		}
		return ScheduleOutput{Slots: slots}, nil

	case ToolCreateRecord:
		var in CreateRecordInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, name, err)
		}
		result, err := r.client(in.CallInput).CreateRecord(ctx, amedis.CreateRecordParams{
			Token:       r.token(in.CallInput),
			DoctorID:    in.DoctorID,
			PatientID:   in.PatientID,
			StartAt:     in.StartAt,
			EndAt:       in.EndAt,
			Description: in.Description,
			Insurer:     in.Insurer,
			Extra:       in.Extra,
		})
		if err != nil {
			return nil, err
		}
		return result, nil

	case ToolListPatientRecords:
		var in PatientRecordsInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, name, err)
		}
		records, err := r.client(in.CallInput).ListPatientRecords(ctx, r.token(in.CallInput), in.PatientAPIID)
		if err != nil {
			return nil, err
		}
		return PatientRecordsOutput{Records: records}, nil

	case ToolCancelRecord:
		var in CancelRecordInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, name, err)
		}
		result, err := r.client(in.CallInput).CancelRecord(ctx, r.token(in.CallInput), in.RecordID, in.Status)
		if err != nil {
			return nil, err
		}
		return result, nil

	case ToolHARAutofill:
		var in HARAutofillInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, name, err)
		}
		path := in.Path
		if path == "" {
			path = r.harPath
		}
		return har.ParseFile(path), nil

	case ToolResolveEntity:
		if r.kb == nil {
			return nil, ErrUnknownTool
		}
		var in ResolveInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, name, err)
		}
		entity, ok := r.kb.Resolve(in.Phrase)
		if !ok {
			return ResolveOutput{}, nil
		}
		expansion := r.kb.Expand(entity)
		return ResolveOutput{Found: true, Entity: &entity, Expansion: &expansion}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

func (r *Registry) client(in CallInput) Upstream {
	return r.factory(in.BaseURL)
}

func (r *Registry) token(in CallInput) string {
	if in.Token != "" {
		return in.Token
	}
	return r.guestToken
}
