package amedis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSON(t *testing.T, raw string) any {
	t.Helper()
	var data any
	require.NoError(t, json.Unmarshal([]byte(raw), &data))
	return data
}

func TestCoerceMinutes(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  *int
	}{
		{"int passes through", 30, intPtr(30)},
		{"float rounds up", 45.6, intPtr(46)},
		{"float rounds half away from zero", 45.5, intPtr(46)},
		{"float rounds down", 45.4, intPtr(45)},
		{"numeric string", "30", intPtr(30)},
		{"comma decimal separator", "45,5", intPtr(46)},
		{"padded string", "  20 ", intPtr(20)},
		{"nil", nil, nil},
		{"empty string", "", nil},
		{"garbage string", "soon", nil},
		{"bool", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceMinutes(tt.value)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func intPtr(n int) *int { return &n }

func TestNormalizeDirectionsFlatList(t *testing.T) {
	data := decodeJSON(t, `[
		{"id": 1, "name": "Therapy"},
		{"idDirection": "7", "title": "Cardiology"},
		{"name": "no id, dropped"},
		"not an object"
	]`)

	got := NormalizeDirections(data)
	require.Len(t, got, 2)
	assert.Equal(t, Direction{ID: "1", Name: "Therapy"}, got[0])
	assert.Equal(t, Direction{ID: "7", Name: "Cardiology"}, got[1])
}

func TestNormalizeDirectionsWrapper(t *testing.T) {
	for _, key := range []string{"directions", "items", "data", "result"} {
		data := decodeJSON(t, `{"`+key+`": [{"Id": 3, "Name": "Neurology"}]}`)
		got := NormalizeDirections(data)
		require.Len(t, got, 1, "wrapper key %q", key)
		assert.Equal(t, "3", got[0].ID)
		assert.Equal(t, "Neurology", got[0].Name)
	}
}

func TestNormalizeDirectionsUnusableShapes(t *testing.T) {
	assert.Empty(t, NormalizeDirections(decodeJSON(t, `{"other": 1}`)))
	assert.Empty(t, NormalizeDirections("just a string"))
	assert.Empty(t, NormalizeDirections(nil))
}

func TestNormalizeDoctorsDeduplicates(t *testing.T) {
	data := decodeJSON(t, `[
		{"id": 10, "fio": "Dr. First"},
		{"doctorId": 11, "fullName": "Dr. Second"},
		{"Id": 10, "name": "Dr. Duplicate"}
	]`)

	got := NormalizeDoctors(data)
	require.Len(t, got, 2)
	assert.Equal(t, "10", got[0].ID)
	assert.Equal(t, "Dr. First", got[0].Name, "first occurrence wins")
	assert.Equal(t, "11", got[1].ID)
	assert.NotNil(t, got[0].Raw)
}

func TestNormalizeDoctorsWrapper(t *testing.T) {
	data := decodeJSON(t, `{"doctors": [{"id": "d1", "name": "Dr. A"}]}`)
	got := NormalizeDoctors(data)
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].ID)
}

func TestNormalizeServices(t *testing.T) {
	data := decodeJSON(t, `{"services": [
		{"serviceId": 5, "serviceName": "ECG", "timePriemMinutes": "30"},
		{"id": 6, "researchText": "Ultrasound", "duration": 45.6},
		{"id": 7, "name": "No duration", "duration": "ask the desk"}
	]}`)

	got := NormalizeServices(data)
	require.Len(t, got, 3)

	require.NotNil(t, got[0].DurationMinutes)
	assert.Equal(t, 30, *got[0].DurationMinutes)
	assert.Equal(t, "ECG", got[0].Name)

	require.NotNil(t, got[1].DurationMinutes)
	assert.Equal(t, 46, *got[1].DurationMinutes)
	assert.Equal(t, "Ultrasound", got[1].Name)

	assert.Nil(t, got[2].DurationMinutes, "unparseable duration yields nil, not an error")
}

func TestNormalizeSlotsNestedBlocks(t *testing.T) {
	data := decodeJSON(t, `[
		{"doctor-9": [
			{
				"officeId": "off-1",
				"cabinet": 12,
				"2023-10-01": [
					{"startAt": "09:00", "endAt": "09:30"},
					{"start": "2023-10-01 10:00:00", "end": "2023-10-01 10:30:00"}
				]
			}
		]}
	]`)

	got := NormalizeSlots(data)
	require.Len(t, got, 2)

	assert.Equal(t, "2023-10-01 09:00", got[0].StartAt)
	assert.Equal(t, "2023-10-01 09:30", got[0].EndAt)
	assert.Equal(t, "2023-10-01", got[0].Raw["date"])
	assert.Equal(t, "off-1", got[0].Raw["officeId"], "block metadata merged into raw")
	assert.Equal(t, "09:00", got[0].Raw["startAt"], "slot fields take precedence")

	assert.Equal(t, "2023-10-01 10:00:00", got[1].StartAt, "full timestamps pass verbatim")
	assert.Equal(t, "2023-10-01 10:30:00", got[1].EndAt)
}

func TestNormalizeSlotsDateTimes(t *testing.T) {
	data := decodeJSON(t, `{"any-key": [
		{"date": "01.10.2023", "times": ["09:00", "09:30"]},
		{"Date": "02.10.2023", "Times": ["11:00"]}
	]}`)

	got := NormalizeSlots(data)
	require.Len(t, got, 3)
	assert.Equal(t, "01.10.2023 09:00", got[0].StartAt)
	assert.Empty(t, got[0].EndAt)
	assert.Equal(t, "01.10.2023 09:30", got[1].StartAt)
	assert.Equal(t, "02.10.2023 11:00", got[2].StartAt)
}

func TestNormalizeSlotsFlatList(t *testing.T) {
	data := decodeJSON(t, `[
		{"startAt": "2024-01-01 09:00", "endAt": "2024-01-01 09:30"},
		{"time": "2024-01-02 10:00"},
		{"note": "no start, skipped"}
	]`)

	got := NormalizeSlots(data)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-01 09:00", got[0].StartAt)
	assert.Equal(t, "2024-01-02 10:00", got[1].StartAt)
}

func TestNormalizeSlotsMalformedEntriesSkipped(t *testing.T) {
	data := decodeJSON(t, `[
		{"doctor": [
			"not a block",
			{"2023-10-01": ["not a slot", {"startAt": "09:00"}]}
		]},
		"not an item"
	]`)

	got := NormalizeSlots(data)
	require.Len(t, got, 1)
	assert.Equal(t, "2023-10-01 09:00", got[0].StartAt)
}

func TestNormalizeRecords(t *testing.T) {
	data := decodeJSON(t, `[{"records": [
		{"id": 100, "doctorName": "Dr. A", "startAt": "01.10.2023 09:00", "status_pac": "ACT"},
		{"recordId": "101", "doctor": "Dr. B", "date": "02.10.2023 10:00", "Status": "CAN"}
	]}]`)

	got := NormalizeRecords(data)
	require.Len(t, got, 2)
	assert.Equal(t, "100", got[0].RecordID)
	assert.Equal(t, "Dr. A", got[0].Doctor)
	assert.Equal(t, "ACT", got[0].Status)
	assert.Equal(t, "101", got[1].RecordID)
	assert.Equal(t, "02.10.2023 10:00", got[1].StartAt)
}

func TestNormalizeRecordsWrapper(t *testing.T) {
	data := decodeJSON(t, `{"result": [{"Id": "7", "start": "03.10.2023 12:00"}]}`)
	got := NormalizeRecords(data)
	require.Len(t, got, 1)
	assert.Equal(t, "7", got[0].RecordID)
	assert.Equal(t, "03.10.2023 12:00", got[0].StartAt)
}

func TestCombineDateTime(t *testing.T) {
	assert.Equal(t, "2023-10-01 09:00", CombineDateTime("2023-10-01", "09:00"))
	assert.Equal(t, "2023-10-01 09:00:00", CombineDateTime("2023-10-01", "2023-10-01 09:00:00"))
	assert.Equal(t, "", CombineDateTime("2023-10-01", ""))
}
