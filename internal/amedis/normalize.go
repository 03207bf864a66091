package amedis

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// The backend does not keep a stable schema: field names vary by endpoint
// and sometimes by deployment. Each entity therefore carries an explicit
// ordered list of accepted aliases; the first key with a usable value wins.
var (
	directionIDAliases   = []string{"id", "idDirection", "Id", "ID"}
	directionNameAliases = []string{"name", "title", "Name", "Title", "direction"}
	directionWrapperKeys = []string{"directions", "items", "data", "result"}

	doctorIDAliases   = []string{"id", "Id", "doctorId", "ID"}
	doctorNameAliases = []string{"name", "fio", "FIO", "fullName"}
	doctorWrapperKeys = []string{"data", "items", "result", "doctors"}

	serviceIDAliases       = []string{"id", "serviceId", "Id"}
	serviceNameAliases     = []string{"name", "serviceName", "Name", "researchText"}
	serviceDurationAliases = []string{"duration", "Duration", "timePriemMinutes"}
	serviceWrapperKeys     = []string{"services", "data", "items", "result"}

	slotStartAliases = []string{"startAt", "start", "time"}
	slotEndAliases   = []string{"endAt", "end"}

	recordIDAliases     = []string{"id", "recordId", "Id"}
	recordDoctorAliases = []string{"doctorName", "doctor", "Doctor"}
	recordStartAliases  = []string{"startAt", "date", "start"}
	recordEndAliases    = []string{"endAt", "end"}
	recordStatusAliases = []string{"status", "Status", "status_pac"}
	recordWrapperKeys   = []string{"records", "items", "data", "result"}
)

// NormalizeDirections maps a directions payload (flat list or wrapper dict)
// to canonical records, dropping elements without a resolvable id.
func NormalizeDirections(data any) []Direction {
	switch v := data.(type) {
	case []any:
		out := make([]Direction, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			id := firstString(m, directionIDAliases)
			if id == "" {
				continue
			}
			out = append(out, Direction{
				ID:   id,
				Name: firstString(m, directionNameAliases),
			})
		}
		return out
	case map[string]any:
		for _, key := range directionWrapperKeys {
			if arr, ok := v[key].([]any); ok {
				return NormalizeDirections(arr)
			}
		}
	}
	return nil
}

// NormalizeDoctors extracts doctors, deduplicated by id keeping the first
// occurrence. The original element is retained under Raw.
func NormalizeDoctors(data any) []Doctor {
	items := unwrapList(data, doctorWrapperKeys)

	seen := make(map[string]struct{})
	var out []Doctor
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := firstString(m, doctorIDAliases)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, Doctor{
			ID:   id,
			Name: firstString(m, doctorNameAliases),
			Raw:  m,
		})
	}
	return out
}

// NormalizeServices extracts services with a best-effort duration. An
// unparseable duration yields a nil DurationMinutes, never an error.
func NormalizeServices(data any) []Service {
	items := unwrapList(data, serviceWrapperKeys)

	var out []Service
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := firstString(m, serviceIDAliases)
		if id == "" {
			continue
		}
		out = append(out, Service{
			ID:              id,
			Name:            firstString(m, serviceNameAliases),
			DurationMinutes: CoerceMinutes(firstValue(m, serviceDurationAliases)),
			Raw:             m,
		})
	}
	return out
}

// NormalizeSlots flattens the schedule payload into slots. The backend has
// shipped three shapes; they are tried in priority order and the first one
// that yields any slots wins.
func NormalizeSlots(data any) []Slot {
	if slots := slotsFromNestedBlocks(data); len(slots) > 0 {
		return slots
	}
	if slots := slotsFromDateTimes(data); len(slots) > 0 {
		return slots
	}
	return slotsFromFlatList(data)
}

// Shape 1: a list of maps where each value is a list of day blocks. Inside a
// block, non-list values are per-block metadata and list values map a date
// string to its slots. Bare "HH:MM" values are combined with the owning date.
// The metadata/date distinction rests only on value type; that is the
// upstream contract as observed, ambiguous as it is.
func slotsFromNestedBlocks(data any) []Slot {
	list, ok := data.([]any)
	if !ok {
		return nil
	}
	var slots []Slot
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range sortedKeys(m) {
			dates, ok := m[key].([]any)
			if !ok {
				continue
			}
			for _, blockAny := range dates {
				block, ok := blockAny.(map[string]any)
				if !ok {
					continue
				}
				meta := make(map[string]any)
				for k, v := range block {
					if _, isList := v.([]any); !isList {
						meta[k] = v
					}
				}
				for _, dateStr := range sortedKeys(block) {
					daySlots, ok := block[dateStr].([]any)
					if !ok {
						continue
					}
					for _, slotAny := range daySlots {
						slot, ok := slotAny.(map[string]any)
						if !ok {
							continue
						}
						start := firstString(slot, slotStartAliases)
						if start == "" {
							continue
						}
						end := firstString(slot, slotEndAliases)
						raw := map[string]any{"date": dateStr}
						for k, v := range meta {
							raw[k] = v
						}
						for k, v := range slot {
							raw[k] = v
						}
						slots = append(slots, Slot{
							StartAt: CombineDateTime(dateStr, start),
							EndAt:   CombineDateTime(dateStr, end),
							Raw:     raw,
						})
					}
				}
			}
		}
	}
	return slots
}

// Shape 2: a dict keyed by arbitrary identifiers, each value a list of day
// objects carrying date/Date and times/Times (bare time strings).
func slotsFromDateTimes(data any) []Slot {
	m, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	var slots []Slot
	for _, key := range sortedKeys(m) {
		days, ok := m[key].([]any)
		if !ok {
			continue
		}
		for _, dayAny := range days {
			day, ok := dayAny.(map[string]any)
			if !ok {
				continue
			}
			date := firstString(day, []string{"date", "Date"})
			if date == "" {
				continue
			}
			times, ok := firstValue(day, []string{"times", "Times"}).([]any)
			if !ok {
				continue
			}
			for _, timeAny := range times {
				t, ok := timeAny.(string)
				if !ok {
					continue
				}
				slots = append(slots, Slot{
					StartAt: date + " " + t,
					Raw:     map[string]any{"date": date, "time": t},
				})
			}
		}
	}
	return slots
}

// Shape 3: an already-flat list of slot-shaped dicts.
func slotsFromFlatList(data any) []Slot {
	list, ok := data.([]any)
	if !ok {
		return nil
	}
	var slots []Slot
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		start := firstString(m, slotStartAliases)
		if start == "" {
			continue
		}
		slots = append(slots, Slot{
			StartAt: start,
			EndAt:   firstString(m, slotEndAliases),
			Raw:     m,
		})
	}
	return slots
}

// NormalizeRecords maps a patient-records payload to canonical records.
// A one-element list wrapping a "records" array is unwrapped first.
func NormalizeRecords(data any) []Record {
	var items []any
	switch v := data.(type) {
	case []any:
		items = v
		if len(v) == 1 {
			if inner, ok := v[0].(map[string]any); ok {
				if records, ok := inner["records"].([]any); ok {
					items = records
				}
			}
		}
	case map[string]any:
		for _, key := range recordWrapperKeys {
			if arr, ok := v[key].([]any); ok {
				items = arr
				break
			}
		}
	}

	var out []Record
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := firstString(m, recordIDAliases)
		if id == "" {
			continue
		}
		out = append(out, Record{
			RecordID: id,
			Doctor:   firstString(m, recordDoctorAliases),
			StartAt:  firstString(m, recordStartAliases),
			EndAt:    firstString(m, recordEndAliases),
			Status:   firstString(m, recordStatusAliases),
			Raw:      m,
		})
	}
	return out
}

// CoerceMinutes converts the backend's heterogeneous duration values to
// whole minutes: ints pass through, floats round half away from zero, and
// numeric strings may use a comma as the decimal separator. Anything else
// yields nil.
func CoerceMinutes(value any) *int {
	switch v := value.(type) {
	case nil:
		return nil
	case int:
		return &v
	case int64:
		n := int(v)
		return &n
	case float64:
		n := int(math.Round(v))
		return &n
	case string:
		text := strings.ReplaceAll(strings.TrimSpace(v), ",", ".")
		if text == "" {
			return nil
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil
		}
		n := int(math.Round(f))
		return &n
	default:
		return nil
	}
}

// CombineDateTime joins a bare "HH:MM" time with its owning date string.
// Values that already look like full timestamps pass through verbatim.
func CombineDateTime(date, value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 5 && strings.Contains(value, ":") {
		return date + " " + value
	}
	return value
}

// firstString returns the first alias whose value renders to a non-empty
// string. Numeric ids are common, so numbers are stringified.
func firstString(m map[string]any, aliases []string) string {
	for _, key := range aliases {
		if s := stringify(m[key]); s != "" {
			return s
		}
	}
	return ""
}

func firstValue(m map[string]any, aliases []string) any {
	for _, key := range aliases {
		if v, ok := m[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

func unwrapList(data any, wrapperKeys []string) []any {
	switch v := data.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range wrapperKeys {
			if arr, ok := v[key].([]any); ok {
				return arr
			}
		}
	}
	return nil
}

// sortedKeys gives a deterministic walk order; JSON object key order is not
// meaningful and Go map iteration is randomized.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
