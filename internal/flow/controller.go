// Package flow implements the dialogue state machine that walks a patient
// from credentials through direction, doctor, service, date range, and slot
// to a confirmed booking. One Controller serves many conversations; all
// per-conversation data lives in State.
package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/amedis-online/booking-agent/internal/amedis"
	"github.com/amedis-online/booking-agent/internal/kb"
	"github.com/amedis-online/booking-agent/internal/observability/metrics"
	"github.com/amedis-online/booking-agent/pkg/logging"
)

// Operations is the slice of the Amedis client the controller drives.
type Operations interface {
	DiscoverDirections(ctx context.Context, token string) amedis.DirectionsResult
	GetDoctors(ctx context.Context, token, directionID string) ([]amedis.Doctor, error)
	GetServiceDurations(ctx context.Context, token, directionID string) []amedis.Service
	GetSchedule(ctx context.Context, token, doctorID, dateStart, dateEnd, serviceID string) ([]amedis.Slot, error)
	CreateRecord(ctx context.Context, p amedis.CreateRecordParams) (*amedis.BookingResult, error)
	ListPatientRecords(ctx context.Context, token, patientAPIID string) ([]amedis.Record, error)
	CancelRecord(ctx context.Context, token, recordID, cancelStatus string) (*amedis.BookingResult, error)
}

// slot raw keys forwarded to /record/create when present.
var bookingExtraKeys = []string{"officeId", "cabinetId", "serviceId", "directionId", "office", "cabinet"}

const helpText = "You can say: \"book an appointment\", \"my records\", or \"cancel a record\". " +
	"Say \"restart\" to abandon the current booking or \"reset\" to start from scratch."

// Controller drives conversations against the booking backend. The optional
// knowledge base answers entity lookups before the network is consulted.
type Controller struct {
	ops     Operations
	kb      *kb.KB
	logger  *logging.Logger
	metrics *metrics.ChatMetrics
}

// Option configures a Controller.
type Option func(*Controller)

// WithKB attaches a local knowledge base. A nil KB leaves resolution off.
func WithKB(knowledge *kb.KB) Option {
	return func(c *Controller) {
		c.kb = knowledge
	}
}

// WithMetrics attaches chat metrics.
func WithMetrics(m *metrics.ChatMetrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// NewController creates a flow controller over the given operations.
func NewController(ops Operations, logger *logging.Logger, opts ...Option) *Controller {
	if ops == nil {
		panic("flow: operations cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Controller{ops: ops, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle processes one user message against the conversation state and
// returns the reply. Errors from domain operations never propagate: they
// become chat messages and the stage stays put so the user can retry.
func (c *Controller) Handle(ctx context.Context, s *State, message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return "I did not catch that. " + helpText
	}
	lowered := strings.ToLower(message)
	c.metrics.ObserveTurn(string(c.currentStage(s)))

	if lowered == "reset" {
		s.Reset()
		return "Everything cleared. Send your access token to begin."
	}

	if reply, gated := c.handleGating(s, message); gated {
		return reply
	}

	if lowered == "restart" || lowered == "start over" {
		s.ResetFlow()
		return "Booking flow abandoned. " + helpText
	}

	switch s.Goal {
	case GoalCreateRecord:
		return c.handleCreateStage(ctx, s, message, lowered)
	case GoalCancelRecord:
		return c.handleCancelStage(ctx, s, message)
	}
	return c.handleBrowse(ctx, s, message, lowered)
}

func (c *Controller) currentStage(s *State) Stage {
	if s.Stage == "" {
		return StageToken
	}
	return s.Stage
}

// handleGating collects token, patient id, and insurer, one message each.
func (c *Controller) handleGating(s *State, message string) (string, bool) {
	switch {
	case s.Token == "":
		s.Token = message
		s.Stage = StagePatient
		return "Thanks. Now send your patient ID (patientAPIId).", true
	case s.PatientID == "":
		s.PatientID = message
		s.Stage = StageInsurer
		return "Got it. Which insurer (Ins_name) should bookings use?", true
	case s.Insurer == "":
		s.Insurer = message
		s.Stage = StageBrowse
		return "You are all set. " + helpText, true
	}
	return "", false
}

func (c *Controller) handleBrowse(ctx context.Context, s *State, message, lowered string) string {
	switch {
	case containsAny(lowered, cancelKeywords):
		return c.startCancelFlow(ctx, s)
	case containsAny(lowered, listKeywords):
		return c.listRecords(ctx, s)
	case containsAny(lowered, createKeywords):
		return c.startCreateFlow(ctx, s)
	case strings.HasPrefix(lowered, "find "):
		return c.lookupEntity(strings.TrimSpace(message[len("find "):]))
	case strings.Contains(lowered, "direction"):
		result := c.ops.DiscoverDirections(ctx, s.Token)
		s.LastDirections = result.Directions
		if len(result.Directions) == 0 {
			return result.Hint
		}
		return "Available directions:\n" + formatDirections(result.Directions)
	}
	return helpText
}

// lookupEntity resolves a phrase against the local knowledge base.
func (c *Controller) lookupEntity(query string) string {
	entity, ok := c.kb.Resolve(query)
	if !ok {
		return fmt.Sprintf("I do not know %q. Try an exact ID or full name.", query)
	}
	expansion := c.kb.Expand(entity)
	reply := fmt.Sprintf("%s %s", entity.Kind, entity.ID)
	if entity.Name != "" {
		reply += " — " + entity.Name
	}
	if len(expansion.Directions) > 0 {
		reply += "\ndirections: " + strings.Join(expansion.Directions, ", ")
	}
	if len(expansion.Services) > 0 {
		reply += "\nservices: " + strings.Join(expansion.Services, ", ")
	}
	if len(expansion.Doctors) > 0 {
		reply += "\ndoctors: " + strings.Join(expansion.Doctors, ", ")
	}
	return reply
}

func (c *Controller) startCreateFlow(ctx context.Context, s *State) string {
	s.Goal = GoalCreateRecord
	s.Stage = StageChooseDirection

	result := c.ops.DiscoverDirections(ctx, s.Token)
	s.LastDirections = result.Directions
	if len(result.Directions) == 0 {
		return result.Hint + "\nSend the direction ID to continue."
	}
	return "Pick a direction (ID or name):\n" + formatDirections(result.Directions)
}

func (c *Controller) handleCreateStage(ctx context.Context, s *State, message, lowered string) string {
	if wordIn(lowered, negativeWords) {
		s.ResetFlow()
		return "Booking cancelled. " + helpText
	}

	switch s.Stage {
	case StageChooseDirection:
		return c.stageChooseDirection(ctx, s, message)
	case StageChooseDoctor:
		return c.stageChooseDoctor(ctx, s, message)
	case StageChooseService:
		return c.stageChooseService(s, message)
	case StageDateRange:
		return c.stageDateRange(ctx, s, message)
	case StagePickSlot:
		return c.stagePickSlot(s, message)
	case StageConfirm:
		return c.stageConfirm(ctx, s, lowered)
	}
	// Unknown stage within an active goal: restart the flow cleanly.
	s.ResetFlow()
	return helpText
}

func (c *Controller) stageChooseDirection(ctx context.Context, s *State, message string) string {
	var directionID string
	ids := make([]string, len(s.LastDirections))
	names := make([]string, len(s.LastDirections))
	for i, d := range s.LastDirections {
		ids[i] = d.ID
		names[i] = d.Name
	}

	if i, ok := matchCandidate(message, ids, names); ok {
		directionID = s.LastDirections[i].ID
	} else if entity, ok := c.kb.Resolve(message); ok && entity.Kind == kb.KindDirection {
		directionID = entity.ID
	} else if number, ok := bareNumber(message); ok && len(s.LastDirections) == 0 {
		// Manual entry path when discovery came up empty.
		directionID = number
	}

	if directionID == "" {
		if len(s.LastDirections) == 0 {
			return "Send a numeric direction ID."
		}
		return "I could not match that direction. Pick one:\n" + formatDirections(s.LastDirections)
	}

	doctors, err := c.ops.GetDoctors(ctx, s.Token, directionID)
	if err != nil {
		return "Could not fetch doctors: " + err.Error()
	}
	if len(doctors) == 0 {
		return "No doctors found for that direction. Pick another one."
	}
	s.DirectionID = directionID
	s.LastDoctors = doctors
	s.Stage = StageChooseDoctor
	return "Pick a doctor (ID or name):\n" + formatDoctors(doctors)
}

func (c *Controller) stageChooseDoctor(ctx context.Context, s *State, message string) string {
	ids := make([]string, len(s.LastDoctors))
	names := make([]string, len(s.LastDoctors))
	for i, d := range s.LastDoctors {
		ids[i] = d.ID
		names[i] = d.Name
	}
	i, ok := matchCandidate(message, ids, names)
	if !ok {
		return "I could not match that doctor. Pick one:\n" + formatDoctors(s.LastDoctors)
	}
	s.DoctorID = s.LastDoctors[i].ID

	services := c.ops.GetServiceDurations(ctx, s.Token, s.DirectionID)
	if len(services) == 0 {
		// Duration info is best-effort; skip straight to dates.
		s.Stage = StageDateRange
		return "When suits you? Send a date range as DD.MM.YYYY DD.MM.YYYY (or a single date)."
	}
	s.LastServices = services
	s.Stage = StageChooseService
	return "Pick a service (ID or name):\n" + formatServices(services)
}

func (c *Controller) stageChooseService(s *State, message string) string {
	ids := make([]string, len(s.LastServices))
	names := make([]string, len(s.LastServices))
	for i, svc := range s.LastServices {
		ids[i] = svc.ID
		names[i] = svc.Name
	}
	i, ok := matchCandidate(message, ids, names)
	if !ok {
		return "I could not match that service. Pick one:\n" + formatServices(s.LastServices)
	}
	s.ServiceID = s.LastServices[i].ID
	s.Stage = StageDateRange
	return "When suits you? Send a date range as DD.MM.YYYY DD.MM.YYYY (or a single date)."
}

func (c *Controller) stageDateRange(ctx context.Context, s *State, message string) string {
	dates := extractDates(message)
	switch len(dates) {
	case 1:
		s.DateStart, s.DateEnd = dates[0], dates[0]
	case 2:
		s.DateStart, s.DateEnd = dates[0], dates[1]
	default:
		return "Please send one or two dates in DD.MM.YYYY form."
	}

	slots, err := c.ops.GetSchedule(ctx, s.Token, s.DoctorID, s.DateStart, s.DateEnd, s.ServiceID)
	if err != nil {
		return "Could not fetch the schedule: " + err.Error()
	}
	if len(slots) == 0 {
		return "No free slots in that range. Try different dates."
	}
	s.LastSlots = slots
	s.Stage = StagePickSlot
	return "Free slots:\n" + formatSlots(slots) + "\nPick one by number or start time."
}

func (c *Controller) stagePickSlot(s *State, message string) string {
	starts := make([]string, len(s.LastSlots))
	for i, slot := range s.LastSlots {
		starts[i] = slot.StartAt
	}
	i, ok := matchSlot(message, starts)
	if !ok {
		return "I could not match that slot. Pick one:\n" + formatSlots(s.LastSlots)
	}
	slot := s.LastSlots[i]
	s.Slot = &slot
	s.Stage = StageConfirm

	summary := fmt.Sprintf("Booking doctor %s at %s", s.DoctorID, slot.StartAt)
	if s.ServiceID != "" {
		summary += ", service " + s.ServiceID
	}
	return summary + ". Confirm? (yes/no)"
}

func (c *Controller) stageConfirm(ctx context.Context, s *State, lowered string) string {
	if !wordIn(lowered, affirmativeWords) {
		return "Please answer yes to book or no to abandon."
	}
	return c.finalizeBooking(ctx, s)
}

func (c *Controller) finalizeBooking(ctx context.Context, s *State) string {
	slot := s.Slot
	if slot == nil {
		s.Stage = StagePickSlot
		return "No slot selected. Pick one:\n" + formatSlots(s.LastSlots)
	}

	extra := make(map[string]string)
	for _, key := range bookingExtraKeys {
		if value := rawString(slot.Raw, key); value != "" {
			extra[key] = value
		}
	}
	if extra["serviceId"] == "" && s.ServiceID != "" {
		extra["serviceId"] = s.ServiceID
	}
	if extra["directionId"] == "" && s.DirectionID != "" {
		extra["directionId"] = s.DirectionID
	}

	endAt := slot.EndAt
	if endAt != "" && len(endAt) <= 5 && strings.Contains(endAt, ":") {
		if parts := strings.SplitN(slot.StartAt, " ", 2); len(parts) == 2 {
			endAt = parts[0] + " " + endAt
		}
	}

	result, err := c.ops.CreateRecord(ctx, amedis.CreateRecordParams{
		Token:       s.Token,
		DoctorID:    s.DoctorID,
		PatientID:   s.PatientID,
		StartAt:     slot.StartAt,
		EndAt:       endAt,
		Description: s.Description,
		Insurer:     s.Insurer,
		Extra:       extra,
	})
	if err != nil {
		return "Could not reach the booking backend: " + err.Error()
	}
	if result.StatusCode != 200 {
		c.metrics.ObserveBooking("rejected")
		c.logger.Warn("booking rejected", "status", result.StatusCode)
		return fmt.Sprintf(
			"The backend rejected the booking (status %d): %v\nPick another slot or say no to abandon.",
			result.StatusCode, result.Error,
		)
	}

	c.metrics.ObserveBooking("created")
	startAt := slot.StartAt
	s.ResetFlow()
	return fmt.Sprintf("Done! Your appointment at %s is booked. %s", startAt, helpText)
}

func (c *Controller) listRecords(ctx context.Context, s *State) string {
	records, err := c.ops.ListPatientRecords(ctx, s.Token, s.PatientID)
	if err != nil {
		return "Could not fetch your records: " + err.Error()
	}
	s.LastRecords = records
	if len(records) == 0 {
		return "You have no records."
	}
	return "Your records:\n" + formatRecords(records)
}

func (c *Controller) startCancelFlow(ctx context.Context, s *State) string {
	records, err := c.ops.ListPatientRecords(ctx, s.Token, s.PatientID)
	if err != nil {
		return "Could not fetch your records: " + err.Error()
	}
	if len(records) == 0 {
		return "You have no records to cancel."
	}
	s.Goal = GoalCancelRecord
	s.Stage = StagePickRecord
	s.LastRecords = records
	return "Which record should I cancel?\n" + formatRecords(records)
}

func (c *Controller) handleCancelStage(ctx context.Context, s *State, message string) string {
	ids := make([]string, len(s.LastRecords))
	starts := make([]string, len(s.LastRecords))
	for i, record := range s.LastRecords {
		ids[i] = record.RecordID
		starts[i] = record.StartAt
	}

	var recordID string
	if i, ok := matchCandidate(message, ids, starts); ok {
		recordID = s.LastRecords[i].RecordID
	} else if i, ok := matchSlot(message, starts); ok {
		recordID = s.LastRecords[i].RecordID
	}
	if recordID == "" {
		return "I could not match that record. Pick one:\n" + formatRecords(s.LastRecords)
	}

	result, err := c.ops.CancelRecord(ctx, s.Token, recordID, amedis.CancelStatus)
	if err != nil {
		return "Could not reach the booking backend: " + err.Error()
	}
	s.ResetFlow()
	if result.StatusCode != 200 {
		return fmt.Sprintf("The backend refused the cancellation (status %d): %v", result.StatusCode, result.Data)
	}
	return fmt.Sprintf("Record %s cancelled. %s", recordID, helpText)
}

func rawString(raw map[string]any, key string) string {
	if raw == nil {
		return ""
	}
	switch v := raw[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
