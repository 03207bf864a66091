package flow

import (
	"regexp"
	"strconv"
	"strings"
)

// The intent layer is a fixed keyword vocabulary, not NLU. Substring checks
// run over the lowercased message.
var (
	createKeywords = []string{"book", "appointment", "make a record", "sign up", "запис", "записаться"}
	cancelKeywords = []string{"cancel", "отмен", "адмен"}
	listKeywords   = []string{"my records", "records", "appointments", "мои записи"}

	affirmativeWords = []string{"yes", "y", "confirm", "ok", "да", "так"}
	negativeWords    = []string{"no", "n", "cancel", "abort", "stop", "не", "нет"}
)

var (
	datePattern       = regexp.MustCompile(`\b\d{2}\.\d{2}\.\d{4}\b`)
	bareNumberPattern = regexp.MustCompile(`^\d+$`)
)

func containsAny(lowered string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// wordIn reports whether the message, trimmed and lowered, is exactly one of
// the given words. Used for confirmation, where substring matching would let
// "note" count as "no".
func wordIn(lowered string, words []string) bool {
	trimmed := strings.Trim(lowered, " .,!")
	for _, word := range words {
		if trimmed == word {
			return true
		}
	}
	return false
}

// extractDates pulls DD.MM.YYYY literals out of a message.
func extractDates(message string) []string {
	return datePattern.FindAllString(message, -1)
}

// bareNumber returns the message as a number string when it is nothing but
// digits, which selection treats as an id (or, for slots, a 1-based index).
func bareNumber(message string) (string, bool) {
	trimmed := strings.TrimSpace(message)
	if bareNumberPattern.MatchString(trimmed) {
		return trimmed, true
	}
	return "", false
}

// matchCandidate picks an entry from the last fetched candidate list: a bare
// number must equal a known id, otherwise the names are checked for a
// substring match in either direction. First match wins, no ranking.
func matchCandidate(message string, ids, names []string) (int, bool) {
	if number, ok := bareNumber(message); ok {
		for i, id := range ids {
			if id == number {
				return i, true
			}
		}
		return 0, false
	}

	lowered := strings.ToLower(strings.TrimSpace(message))
	if lowered == "" {
		return 0, false
	}
	for i, name := range names {
		candidate := strings.ToLower(name)
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, lowered) || strings.Contains(lowered, candidate) {
			return i, true
		}
	}
	return 0, false
}

// matchSlot accepts a 1-based index into the slot list or a substring match
// against a slot's start time.
func matchSlot(message string, starts []string) (int, bool) {
	if number, ok := bareNumber(message); ok {
		index, err := strconv.Atoi(number)
		if err == nil && index >= 1 && index <= len(starts) {
			return index - 1, true
		}
		return 0, false
	}

	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return 0, false
	}
	for i, start := range starts {
		if strings.Contains(trimmed, start) || strings.Contains(start, trimmed) {
			return i, true
		}
	}
	return 0, false
}
