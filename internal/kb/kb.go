// Package kb implements the optional local knowledge base: a snapshot of
// directions, services, and doctors with precomputed relationship indexes,
// used to resolve entities without touching the network. A nil *KB is valid
// and resolves nothing, which is how the feature stays disabled.
package kb

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Kind classifies a resolved entity.
type Kind string

const (
	KindDirection Kind = "direction"
	KindService   Kind = "service"
	KindDoctor    Kind = "doctor"
)

// Entity is a resolved (kind, id) pair.
type Entity struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Expansion lists entities related to a resolved one through the indexes.
type Expansion struct {
	Directions []string `json:"directions,omitempty"`
	Services   []string `json:"services,omitempty"`
	Doctors    []string `json:"doctors,omitempty"`
}

type document struct {
	Entities struct {
		Directions map[string]map[string]any `json:"directions"`
		Services   map[string]map[string]any `json:"services"`
		Doctors    map[string]map[string]any `json:"doctors"`
	} `json:"entities"`
	Index struct {
		ByDirection        map[string][]string `json:"by_direction"`
		ByService          map[string][]string `json:"by_service"`
		DoctorToServices   map[string][]string `json:"doctor_to_services"`
		DoctorToDirections map[string][]string `json:"doctor_to_directions"`
	} `json:"index"`
}

// KB is a loaded knowledge base.
type KB struct {
	directions map[string]string // id -> name
	services   map[string]string
	doctors    map[string]string

	byDirection         map[string][]string // direction -> services
	byService           map[string][]string // service -> doctors
	doctorToServices    map[string][]string
	doctorToDirections  map[string][]string
	serviceToDirections map[string][]string // inverted from byDirection
}

// Load reads a knowledge base document from disk.
func Load(path string) (*KB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kb: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a KB from a JSON document.
func Parse(data []byte) (*KB, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("kb: decode document: %w", err)
	}

	kb := &KB{
		directions:          names(doc.Entities.Directions, "direction_name"),
		services:            names(doc.Entities.Services, "service_name"),
		doctors:             names(doc.Entities.Doctors, "doctor_name"),
		byDirection:         doc.Index.ByDirection,
		byService:           doc.Index.ByService,
		doctorToServices:    doc.Index.DoctorToServices,
		doctorToDirections:  doc.Index.DoctorToDirections,
		serviceToDirections: make(map[string][]string),
	}

	for directionID, serviceIDs := range kb.byDirection {
		for _, serviceID := range serviceIDs {
			kb.serviceToDirections[serviceID] = append(kb.serviceToDirections[serviceID], directionID)
		}
	}
	for _, directions := range kb.serviceToDirections {
		sort.Strings(directions)
	}
	return kb, nil
}

// names extracts the display name for each entity: the canonical *_name key
// first, then any other key with the _name suffix.
func names(entities map[string]map[string]any, primaryKey string) map[string]string {
	out := make(map[string]string, len(entities))
	for id, meta := range entities {
		if name, ok := meta[primaryKey].(string); ok && name != "" {
			out[id] = name
			continue
		}
		out[id] = ""
		keys := make([]string, 0, len(meta))
		for key := range meta {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if strings.HasSuffix(key, "_name") {
				if name, ok := meta[key].(string); ok && name != "" {
					out[id] = name
					break
				}
			}
		}
	}
	return out
}

// Resolve maps a free-text or ID-literal query to a canonical entity.
// Exact ID matches win, then case-insensitive exact name matches. There is
// deliberately no fuzzy or partial matching.
func (kb *KB) Resolve(query string) (Entity, bool) {
	if kb == nil {
		return Entity{}, false
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return Entity{}, false
	}

	kinds := []struct {
		kind  Kind
		items map[string]string
	}{
		{KindDirection, kb.directions},
		{KindService, kb.services},
		{KindDoctor, kb.doctors},
	}

	for _, k := range kinds {
		if name, ok := k.items[query]; ok {
			return Entity{Kind: k.kind, ID: query, Name: name}, true
		}
	}

	lowered := strings.ToLower(query)
	for _, k := range kinds {
		for _, id := range sortedIDs(k.items) {
			if name := k.items[id]; name != "" && strings.ToLower(name) == lowered {
				return Entity{Kind: k.kind, ID: id, Name: name}, true
			}
		}
	}
	return Entity{}, false
}

// Expand derives the entities related to a resolved one: services of a
// direction, doctors and directions of a service, services and directions
// offered by a doctor.
func (kb *KB) Expand(entity Entity) Expansion {
	if kb == nil {
		return Expansion{}
	}
	switch entity.Kind {
	case KindDirection:
		return Expansion{Services: kb.byDirection[entity.ID]}
	case KindService:
		return Expansion{
			Doctors:    kb.byService[entity.ID],
			Directions: kb.serviceToDirections[entity.ID],
		}
	case KindDoctor:
		return Expansion{
			Services:   kb.doctorToServices[entity.ID],
			Directions: kb.doctorToDirections[entity.ID],
		}
	}
	return Expansion{}
}

func sortedIDs(m map[string]string) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
