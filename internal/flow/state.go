package flow

import "github.com/amedis-online/booking-agent/internal/amedis"

// Stage identifies where a conversation is. Stages before browse gate the
// credentials every later call needs; stages after browse are only
// meaningful while a goal is active.
type Stage string

const (
	StageToken   Stage = "token"
	StagePatient Stage = "patient"
	StageInsurer Stage = "insurer"
	StageBrowse  Stage = "browse"

	StageChooseDirection Stage = "choose_direction"
	StageChooseDoctor    Stage = "choose_doctor"
	StageChooseService   Stage = "choose_service"
	StageDateRange       Stage = "date_range"
	StagePickSlot        Stage = "pick_slot"
	StageConfirm         Stage = "confirm"
	StagePickRecord      Stage = "pick_record"
)

// Goals drive the multi-step flows.
const (
	GoalCreateRecord = "create_record"
	GoalCancelRecord = "cancel_record"
)

// State is everything one conversation owns. It is serialized as-is by the
// session store, so every field carries a JSON tag.
type State struct {
	Token     string `json:"token,omitempty"`
	PatientID string `json:"patient_id,omitempty"`
	Insurer   string `json:"insurer,omitempty"`

	Goal  string `json:"goal,omitempty"`
	Stage Stage  `json:"stage,omitempty"`

	DirectionID string       `json:"direction_id,omitempty"`
	DoctorID    string       `json:"doctor_id,omitempty"`
	ServiceID   string       `json:"service_id,omitempty"`
	Description string       `json:"description,omitempty"`
	DateStart   string       `json:"date_start,omitempty"`
	DateEnd     string       `json:"date_end,omitempty"`
	Slot        *amedis.Slot `json:"slot,omitempty"`

	LastDirections []amedis.Direction `json:"last_directions,omitempty"`
	LastDoctors    []amedis.Doctor    `json:"last_doctors,omitempty"`
	LastServices   []amedis.Service   `json:"last_services,omitempty"`
	LastSlots      []amedis.Slot      `json:"last_slots,omitempty"`
	LastRecords    []amedis.Record    `json:"last_records,omitempty"`
}

// ResetFlow abandons the booking in progress. Credentials survive; only the
// in-progress selection and candidate lists are cleared.
func (s *State) ResetFlow() {
	s.Goal = ""
	s.Stage = StageBrowse
	s.DirectionID = ""
	s.DoctorID = ""
	s.ServiceID = ""
	s.Description = ""
	s.DateStart = ""
	s.DateEnd = ""
	s.Slot = nil
	s.LastDirections = nil
	s.LastDoctors = nil
	s.LastServices = nil
	s.LastSlots = nil
	s.LastRecords = nil
}

// Reset clears the conversation entirely, credentials included.
func (s *State) Reset() {
	*s = State{}
}
