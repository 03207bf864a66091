package flow

import (
	"fmt"
	"strings"

	"github.com/amedis-online/booking-agent/internal/amedis"
)

// Candidate lists are capped so a wide schedule does not flood the chat.
const maxListed = 20

func formatDirections(directions []amedis.Direction) string {
	lines := make([]string, 0, len(directions))
	for i, d := range directions {
		if i == maxListed {
			lines = append(lines, fmt.Sprintf("…and %d more", len(directions)-maxListed))
			break
		}
		line := fmt.Sprintf("%d) %s", i+1, d.ID)
		if d.Name != "" {
			line += " — " + d.Name
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatDoctors(doctors []amedis.Doctor) string {
	lines := make([]string, 0, len(doctors))
	for i, d := range doctors {
		if i == maxListed {
			lines = append(lines, fmt.Sprintf("…and %d more", len(doctors)-maxListed))
			break
		}
		line := fmt.Sprintf("%d) %s", i+1, d.ID)
		if d.Name != "" {
			line += " — " + d.Name
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatServices(services []amedis.Service) string {
	lines := make([]string, 0, len(services))
	for i, svc := range services {
		if i == maxListed {
			lines = append(lines, fmt.Sprintf("…and %d more", len(services)-maxListed))
			break
		}
		line := fmt.Sprintf("%d) %s", i+1, svc.ID)
		if svc.Name != "" {
			line += " — " + svc.Name
		}
		if svc.DurationMinutes != nil {
			line += fmt.Sprintf(" (%d min)", *svc.DurationMinutes)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatSlots(slots []amedis.Slot) string {
	lines := make([]string, 0, len(slots))
	for i, slot := range slots {
		if i == maxListed {
			lines = append(lines, fmt.Sprintf("…and %d more", len(slots)-maxListed))
			break
		}
		line := fmt.Sprintf("%d) %s", i+1, slot.StartAt)
		if slot.EndAt != "" {
			line += " — " + slot.EndAt
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatRecords(records []amedis.Record) string {
	lines := make([]string, 0, len(records))
	for i, record := range records {
		if i == maxListed {
			lines = append(lines, fmt.Sprintf("…and %d more", len(records)-maxListed))
			break
		}
		line := fmt.Sprintf("%d) %s", i+1, record.RecordID)
		if record.StartAt != "" {
			line += " — " + record.StartAt
		}
		if record.Status != "" {
			line += " — " + record.Status
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
