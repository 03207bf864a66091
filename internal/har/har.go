// Package har extracts booking credentials from a browser-exported HAR
// capture: patient identifiers, a default insurer, and the form fields the
// site sends to /record/create.
package har

import (
	"encoding/json"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"
)

var patientIDPattern = regexp.MustCompile(`patientAPIId=([0-9]+)`)

// Result holds everything a capture yields for autofill. A missing or
// unparseable file produces a zero-value Result, never an error.
type Result struct {
	PatientIDs   []string `json:"patient_ids"`
	Insurer      string   `json:"insurer,omitempty"`
	RecordFields []string `json:"record_fields"`
}

type harFile struct {
	Log struct {
		Entries []struct {
			Request struct {
				URL      string `json:"url"`
				Method   string `json:"method"`
				PostData struct {
					Text string `json:"text"`
				} `json:"postData"`
			} `json:"request"`
		} `json:"entries"`
	} `json:"log"`
}

// ParseFile reads and parses a HAR file from disk.
func ParseFile(path string) Result {
	if path == "" {
		return Result{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}
	}
	return Parse(data)
}

// Parse extracts patient identifiers and record-create form metadata from
// raw HAR bytes.
func Parse(data []byte) Result {
	var capture harFile
	if err := json.Unmarshal(data, &capture); err != nil {
		return Result{}
	}

	patientIDs := make(map[string]struct{})
	var insurer string
	var recordFields []string

	for _, entry := range capture.Log.Entries {
		req := entry.Request

		if u, err := url.Parse(req.URL); err == nil {
			for _, value := range u.Query()["patientAPIId"] {
				if value != "" {
					patientIDs[value] = struct{}{}
				}
			}
		}

		body := req.PostData.Text
		if match := patientIDPattern.FindStringSubmatch(body); match != nil {
			patientIDs[match[1]] = struct{}{}
		}

		if req.Method == "POST" && strings.HasSuffix(trimQuery(req.URL), "/record/create") {
			form, err := url.ParseQuery(body)
			if err != nil {
				continue
			}
			fields := make([]string, 0, len(form))
			for key := range form {
				fields = append(fields, key)
			}
			sort.Strings(fields)
			recordFields = fields
			if v := form.Get("Ins_name"); v != "" {
				insurer = v
			}
		}
	}

	result := Result{Insurer: insurer, RecordFields: recordFields}
	for id := range patientIDs {
		result.PatientIDs = append(result.PatientIDs, id)
	}
	sort.Strings(result.PatientIDs)
	return result
}

func trimQuery(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}
