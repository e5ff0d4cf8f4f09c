package event

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("bad test payload: %v", err)
	}
	return payload
}

func TestCallID_Shapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"nested message.call.id", `{"message":{"call":{"id":"call-1"}}}`, "call-1"},
		{"top-level call.id", `{"call":{"id":"call-2"}}`, "call-2"},
		{"message.callId", `{"message":{"callId":"call-3"}}`, "call-3"},
		{"flat callId", `{"callId":"call-4"}`, "call-4"},
		{"first path wins", `{"message":{"call":{"id":"call-a"}},"callId":"call-b"}`, "call-a"},
		{"absent", `{"message":{}}`, ""},
		{"wrong type", `{"callId":42}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CallID(decode(t, tt.raw)); got != tt.want {
				t.Errorf("CallID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestType_Shapes(t *testing.T) {
	if got := Type(decode(t, `{"message":{"type":"end-of-call-report"}}`)); got != "end-of-call-report" {
		t.Errorf("Type = %q", got)
	}
	if got := Type(decode(t, `{"type":"tool-calls"}`)); got != "tool-calls" {
		t.Errorf("Type = %q", got)
	}
	if got := Type(decode(t, `{}`)); got != "" {
		t.Errorf("Type = %q, want empty", got)
	}
}

func TestStructuredData_Shapes(t *testing.T) {
	payload := decode(t, `{"message":{"analysis":{"structuredData":{"name":"Dana"}}}}`)
	data := StructuredData(payload)
	if data["name"] != "Dana" {
		t.Errorf("structured data = %v", data)
	}

	payload = decode(t, `{"structuredData":{"phone":"555"}}`)
	if StructuredData(payload)["phone"] != "555" {
		t.Error("flat structuredData not found")
	}
}

func TestStructuredData_AbsentIsEmptyObject(t *testing.T) {
	data := StructuredData(decode(t, `{"message":{}}`))
	if data == nil {
		t.Fatal("StructuredData returned nil")
	}
	if len(data) != 0 {
		t.Errorf("expected empty object, got %v", data)
	}
}

func TestToolCalls_FunctionShape(t *testing.T) {
	payload := decode(t, `{
		"message": {
			"toolCalls": [
				{
					"id": "tc-1",
					"function": {
						"name": "create_intake",
						"arguments": {"name": "Dana", "jobType": "cleanup"}
					}
				}
			]
		}
	}`)

	calls := ToolCalls(payload)
	if len(calls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(calls))
	}
	if calls[0].ID != "tc-1" {
		t.Errorf("ID = %q", calls[0].ID)
	}
	if calls[0].Name != "create_intake" {
		t.Errorf("Name = %q", calls[0].Name)
	}
	if calls[0].Arguments["jobType"] != "cleanup" {
		t.Errorf("Arguments = %v", calls[0].Arguments)
	}
}

func TestToolCalls_ArgumentsAsJSONString(t *testing.T) {
	payload := decode(t, `{
		"toolCalls": [
			{
				"toolCallId": "tc-2",
				"name": "create_intake",
				"arguments": "{\"name\":\"Sam\"}"
			}
		]
	}`)

	calls := ToolCalls(payload)
	if len(calls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(calls))
	}
	if calls[0].ID != "tc-2" {
		t.Errorf("ID = %q", calls[0].ID)
	}
	if calls[0].Arguments["name"] != "Sam" {
		t.Errorf("Arguments = %v", calls[0].Arguments)
	}
}

func TestToolCalls_MalformedEntries(t *testing.T) {
	payload := decode(t, `{
		"toolCalls": [
			"not-an-object",
			{"id": "tc-3"},
			{"id": "tc-4", "arguments": "not json"}
		]
	}`)

	calls := ToolCalls(payload)
	if len(calls) != 2 {
		t.Fatalf("got %d tool calls, want 2", len(calls))
	}
	for _, tc := range calls {
		if tc.Arguments == nil {
			t.Errorf("tool call %q has nil arguments", tc.ID)
		}
	}
}

func TestToolCalls_AbsentIsEmptyList(t *testing.T) {
	calls := ToolCalls(decode(t, `{"message":{"type":"status-update"}}`))
	if calls == nil {
		t.Fatal("ToolCalls returned nil")
	}
	if len(calls) != 0 {
		t.Errorf("expected no tool calls, got %d", len(calls))
	}
}
