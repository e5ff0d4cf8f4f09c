// Package intake maps loosely-structured caller data into the fixed
// spreadsheet row format.
package intake

import (
	"fmt"
	"strings"
	"time"

	"github.com/jessewayne86/junk-dispatch/internal/domain"
)

// samePlaceholder is the literal the voice agent records when the caller
// wants to be reached on the number they called from.
const samePlaceholder = "Same number"

// Normalizer builds IntakeRecords. The record timestamp comes from the
// injected clock; it is the one non-deterministic field.
type Normalizer struct {
	clock func() time.Time
}

func New() *Normalizer {
	return &Normalizer{clock: time.Now}
}

// WithClock overrides the time source. For tests.
func (n *Normalizer) WithClock(clock func() time.Time) *Normalizer {
	n.clock = clock
	return n
}

// Normalize produces a fully-populated record from arbitrary structured
// data. Missing or misshapen fields degrade to empty strings; there is no
// failure path.
func (n *Normalizer) Normalize(structured map[string]any, jobID domain.JobID, sourceTag string) domain.IntakeRecord {
	rec := domain.IntakeRecord{
		JobID:        string(jobID),
		CustomerName: str(structured, "name", "customerName"),
		Phone:        phone(structured),
		Email:        str(structured, "email"),
		Address:      str(structured, "address"),
		JobType:      str(structured, "jobType"),
		Scope:        scope(structured),
		Preferred:    str(structured, "preferredTime", "timeWindow"),
		Urgent:       urgent(structured),
		PhotoLink:    str(structured, "photoLink", "photoUrl"),
		Status:       str(structured, "status"),
		Source:       sourceTag,
		ReceivedAt:   n.clock().UTC().Format(time.RFC3339),
	}
	if rec.Status == "" {
		rec.Status = "New"
	}
	return rec
}

// phone resolves the callback number. The explicit callbackNumber wins
// unless it is the "Same number" placeholder, then phone, then from.
func phone(structured map[string]any) string {
	if cb := str(structured, "callbackNumber"); cb != "" && cb != samePlaceholder {
		return cb
	}
	return str(structured, "phone", "from")
}

// scopeFields are rendered in this order; empty values are omitted entirely.
var scopeFields = []string{"jobType", "location", "size", "access", "specialItems", "deadline"}

// scope concatenates the labeled scope fields into a single description,
// e.g. "jobType: cleanup | specialItems: couch, fridge".
func scope(structured map[string]any) string {
	var segments []string
	for _, field := range scopeFields {
		value := stringify(structured[field])
		if value == "" {
			continue
		}
		segments = append(segments, field+": "+value)
	}
	return strings.Join(segments, " | ")
}

// urgent returns "Y" when either urgency indicator is truthy.
func urgent(structured map[string]any) string {
	if truthy(structured["urgent"]) || truthy(structured["asap"]) {
		return "Y"
	}
	return "N"
}

// str returns the first non-empty string value among keys.
func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// stringify renders a scalar or list value for the scope description. Lists
// are joined with ", ".
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		var parts []string
		for _, item := range val {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(val, ", ")
	case float64:
		// JSON numbers decode as float64; render integers without a decimal.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		// Nested objects have no sensible rendering in a scope line.
		return ""
	}
}

// truthy interprets the loose urgency flags callers send: booleans, "yes",
// "y", "true", "1", or any non-zero number.
func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes", "y", "1":
			return true
		}
		return false
	case float64:
		return val != 0
	default:
		return false
	}
}
