// Package event extracts fields from loosely-structured inbound webhook
// payloads. Upstream platforms have shipped several payload shapes over time,
// so every field is resolved through an ordered list of JMESPath expressions:
// the first defined, non-null result wins, and absence always degrades to a
// type-appropriate empty value. Extraction never fails.
package event

import (
	"encoding/json"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/jessewayne86/junk-dispatch/internal/domain"
)

var callIDPaths = []string{
	"message.call.id",
	"call.id",
	"message.callId",
	"callId",
}

var toolCallPaths = []string{
	"message.toolCalls",
	"message.toolCallList",
	"toolCalls",
}

var structuredDataPaths = []string{
	"message.analysis.structuredData",
	"analysis.structuredData",
	"message.structuredData",
	"structuredData",
}

var eventTypePaths = []string{
	"message.type",
	"type",
}

// CallID returns the upstream call identifier, or "" when no known shape
// carries one.
func CallID(payload map[string]any) string {
	v := first(callIDPaths, payload)
	s, _ := v.(string)
	return s
}

// Type returns the event type tag ("end-of-call-report" etc.), or "".
func Type(payload map[string]any) string {
	v := first(eventTypePaths, payload)
	s, _ := v.(string)
	return s
}

// StructuredData returns the structured-data object from any of the known
// nesting shapes. Always non-nil.
func StructuredData(payload map[string]any) map[string]any {
	v := first(structuredDataPaths, payload)
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// ToolCalls returns the tool invocations carried by the event. Always
// non-nil; entries that carry no recognizable fields come back with empty
// values rather than being dropped.
func ToolCalls(payload map[string]any) []domain.ToolCall {
	v := first(toolCallPaths, payload)
	list, ok := v.([]any)
	if !ok {
		return []domain.ToolCall{}
	}

	calls := make([]domain.ToolCall, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		calls = append(calls, domain.ToolCall{
			ID:        firstString(entry, "id", "toolCallId"),
			Name:      toolName(entry),
			Arguments: toolArguments(entry),
		})
	}
	return calls
}

// first evaluates paths in order against data and returns the first defined,
// non-null result. Evaluation errors are treated the same as absence.
func first(paths []string, data map[string]any) any {
	for _, p := range paths {
		v, err := jmespath.Search(p, data)
		if err != nil || v == nil {
			continue
		}
		return v
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func toolName(entry map[string]any) string {
	if fn, ok := entry["function"].(map[string]any); ok {
		if s := firstString(fn, "name"); s != "" {
			return s
		}
	}
	return firstString(entry, "name")
}

// toolArguments handles both shapes the platform has used: a nested
// function.arguments object, and arguments serialized as a JSON string.
func toolArguments(entry map[string]any) map[string]any {
	var raw any
	if fn, ok := entry["function"].(map[string]any); ok {
		raw = fn["arguments"]
	}
	if raw == nil {
		raw = entry["arguments"]
	}

	switch v := raw.(type) {
	case map[string]any:
		return v
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(v), &m); err == nil && m != nil {
			return m
		}
	}
	return map[string]any{}
}
