package amedis

// Direction is a medical specialty grouping doctors and services.
type Direction struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Doctor is a practitioner listed by the backend. Raw keeps the original
// element because downstream booking pulls office/cabinet ids out of it.
type Doctor struct {
	ID   string         `json:"id"`
	Name string         `json:"name,omitempty"`
	Raw  map[string]any `json:"raw,omitempty"`
}

// Service is a bookable procedure within a direction.
type Service struct {
	ID              string         `json:"id"`
	Name            string         `json:"name,omitempty"`
	DurationMinutes *int           `json:"duration_minutes,omitempty"`
	Raw             map[string]any `json:"raw,omitempty"`
}

// Slot is one bookable time window for a doctor (and optionally a service).
// StartAt/EndAt are either full "date time" strings or whatever the backend
// sent verbatim; a slot has no identity beyond its start time.
type Slot struct {
	StartAt string         `json:"startAt"`
	EndAt   string         `json:"endAt,omitempty"`
	Raw     map[string]any `json:"raw,omitempty"`
}

// Record is a patient's appointment as reported by the backend.
type Record struct {
	RecordID string         `json:"recordId"`
	Doctor   string         `json:"doctor,omitempty"`
	StartAt  string         `json:"startAt,omitempty"`
	EndAt    string         `json:"endAt,omitempty"`
	Status   string         `json:"status,omitempty"`
	Raw      map[string]any `json:"raw,omitempty"`
}

// DirectionsResult reports which candidate endpoint produced the listing.
// When no endpoint answered usefully, Directions is empty and Hint carries
// a human-readable fallback message; that is a soft miss, not an error.
type DirectionsResult struct {
	EndpointUsed string      `json:"endpoint_used"`
	Directions   []Direction `json:"directions"`
	Hint         string      `json:"hint,omitempty"`
}

// BookingResult is the outcome of a record create/cancel call. Rejections
// are expected and must stay inspectable, so the backend's error payload
// and the exact form we sent are both preserved instead of raising.
type BookingResult struct {
	StatusCode int               `json:"status_code"`
	Data       any               `json:"data,omitempty"`
	Error      any               `json:"error,omitempty"`
	Sent       map[string]string `json:"sent"`
}
