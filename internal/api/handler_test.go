package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/jessewayne86/junk-dispatch/internal/correlate"
	"github.com/jessewayne86/junk-dispatch/internal/domain"
	"github.com/jessewayne86/junk-dispatch/internal/intake"
)

type fakeUpserter struct {
	mu      sync.Mutex
	records []domain.IntakeRecord
	err     error
	skipped bool
}

func (f *fakeUpserter) Send(ctx context.Context, record domain.IntakeRecord) (domain.SinkResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.SinkResponse{}, f.err
	}
	if f.skipped {
		return domain.SinkResponse{Skipped: true}, nil
	}
	f.records = append(f.records, record)
	return domain.SinkResponse{StatusCode: 200, Body: map[string]any{"ok": true}}, nil
}

func (f *fakeUpserter) all() []domain.IntakeRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.IntakeRecord(nil), f.records...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.NotifyEvent
	full   bool
}

func (f *fakeNotifier) Emit(ev domain.NotifyEvent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.events = append(f.events, ev)
	return true
}

func (f *fakeNotifier) all() []domain.NotifyEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.NotifyEvent(nil), f.events...)
}

type fakeForwarder struct {
	twiml   string
	err     error
	gotForm url.Values
}

func (f *fakeForwarder) Enabled() bool { return true }

func (f *fakeForwarder) Forward(ctx context.Context, form url.Values) (string, error) {
	f.gotForm = form
	if f.err != nil {
		return "", f.err
	}
	return f.twiml, nil
}

func newTestHandler(up Upserter) (*Handler, *correlate.Table) {
	table := correlate.NewTable(0)
	h := NewHandler(table, intake.New(), up)
	return h, table
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(&fakeUpserter{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	h, _ := newTestHandler(&fakeUpserter{})

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestVapiWebhook_ToolCallCreatesIntake(t *testing.T) {
	up := &fakeUpserter{}
	h, table := newTestHandler(up)

	rec := postJSON(t, h, "/vapi/webhook", `{
		"message": {
			"call": {"id": "call-abc"},
			"toolCalls": [
				{
					"id": "tc-1",
					"function": {
						"name": "create_intake",
						"arguments": {"name": "Dana", "phone": "555-1234", "jobType": "cleanup"}
					}
				}
			]
		}
	}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp ToolCallResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(resp.ToolCallResults) != 1 {
		t.Fatalf("got %d tool call results, want 1", len(resp.ToolCallResults))
	}
	if resp.ToolCallResults[0].ToolCallID != "tc-1" {
		t.Errorf("ToolCallID = %q", resp.ToolCallResults[0].ToolCallID)
	}
	if !strings.HasPrefix(resp.ToolCallResults[0].Result, "intake recorded under job ") {
		t.Errorf("Result = %q", resp.ToolCallResults[0].Result)
	}

	records := up.all()
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].CustomerName != "Dana" || records[0].Source != "vapi-tool" {
		t.Errorf("record = %+v", records[0])
	}

	if jobID, ok := table.Lookup("call-abc"); !ok || string(jobID) != records[0].JobID {
		t.Errorf("correlation entry = %q/%v, record job = %q", jobID, ok, records[0].JobID)
	}
}

func TestVapiWebhook_ToolCallThenReportSharesJob(t *testing.T) {
	up := &fakeUpserter{}
	h, table := newTestHandler(up)

	postJSON(t, h, "/vapi/webhook", `{
		"message": {
			"call": {"id": "abc"},
			"toolCalls": [
				{"id": "tc-1", "function": {"name": "create_intake", "arguments": {"name": "Dana"}}}
			]
		}
	}`)

	rec := postJSON(t, h, "/vapi/webhook", `{
		"message": {
			"type": "end-of-call-report",
			"call": {"id": "abc"},
			"analysis": {"structuredData": {"name": "Dana", "address": "12 Oak St"}}
		}
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("report status = %d, want 200", rec.Code)
	}

	records := up.all()
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].JobID != records[1].JobID {
		t.Errorf("job ids differ: %q vs %q", records[0].JobID, records[1].JobID)
	}
	if records[1].Source != "vapi-call" {
		t.Errorf("report source = %q", records[1].Source)
	}
	if table.Len() != 1 {
		t.Errorf("correlation table has %d entries, want 1", table.Len())
	}
}

func TestVapiWebhook_UnknownToolReported(t *testing.T) {
	up := &fakeUpserter{}
	h, _ := newTestHandler(up)

	rec := postJSON(t, h, "/vapi/webhook", `{
		"toolCalls": [
			{"id": "tc-9", "function": {"name": "book_flight", "arguments": {}}}
		]
	}`)

	var resp ToolCallResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.ToolCallResults[0].Result != `no handler for tool "book_flight"` {
		t.Errorf("Result = %q", resp.ToolCallResults[0].Result)
	}
	if len(up.all()) != 0 {
		t.Error("unknown tool must not write a record")
	}
}

func TestVapiWebhook_SinkFailureStill200(t *testing.T) {
	up := &fakeUpserter{err: errors.New("sink down")}
	h, _ := newTestHandler(up)

	rec := postJSON(t, h, "/vapi/webhook", `{
		"message": {
			"call": {"id": "call-err"},
			"toolCalls": [
				{"id": "tc-1", "function": {"name": "create_intake", "arguments": {"name": "Dana"}}}
			]
		}
	}`)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 even on sink failure", rec.Code)
	}

	var resp ToolCallResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !strings.HasPrefix(resp.ToolCallResults[0].Result, "failed to save intake for job ") {
		t.Errorf("Result = %q", resp.ToolCallResults[0].Result)
	}
}

func TestVapiWebhook_MalformedBodyStill200(t *testing.T) {
	h, _ := newTestHandler(&fakeUpserter{})

	rec := postJSON(t, h, "/vapi/webhook", `{not json`)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for malformed payload", rec.Code)
	}
}

func TestVapiWebhook_ExplicitJobIDWins(t *testing.T) {
	up := &fakeUpserter{}
	h, table := newTestHandler(up)

	minted := table.ResolveOrCreate("call-abc")

	postJSON(t, h, "/vapi/webhook", `{
		"message": {
			"call": {"id": "call-abc"},
			"toolCalls": [
				{"id": "tc-1", "function": {"name": "update_intake", "arguments": {"jobId": "job_crm0001", "name": "Dana"}}}
			]
		}
	}`)

	records := up.all()
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].JobID != "job_crm0001" {
		t.Errorf("JobID = %q, want explicit job_crm0001 (minted was %q)", records[0].JobID, minted)
	}
	if got, _ := table.Lookup("call-abc"); got != "job_crm0001" {
		t.Errorf("correlation not rebound, lookup = %q", got)
	}
}

func TestIntake_JSONSubmission(t *testing.T) {
	up := &fakeUpserter{}
	h, _ := newTestHandler(up)
	h.WithPublicBaseURL("https://jobs.example.com/")

	rec := postJSON(t, h, "/intake", `{"name": "Sam", "phone": "555-9999", "jobType": "haul"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp IntakeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !resp.OK {
		t.Error("ok = false")
	}
	if !strings.HasPrefix(resp.JobID, "job_") {
		t.Errorf("jobId = %q", resp.JobID)
	}
	if resp.PhotoLink != "https://jobs.example.com/photos/"+resp.JobID {
		t.Errorf("photoLink = %q", resp.PhotoLink)
	}

	records := up.all()
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].CustomerName != "Sam" || records[0].Source != "intake" {
		t.Errorf("record = %+v", records[0])
	}
}

func TestIntake_FormSubmission(t *testing.T) {
	up := &fakeUpserter{}
	h, _ := newTestHandler(up)

	form := url.Values{}
	form.Set("name", "Lee")
	form.Set("urgent", "yes")
	rec := postForm(t, h, "/intake", form)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	records := up.all()
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].CustomerName != "Lee" {
		t.Errorf("CustomerName = %q", records[0].CustomerName)
	}
	if records[0].Urgent != "Y" {
		t.Errorf("Urgent = %q", records[0].Urgent)
	}
}

func TestIntake_SinkFailureStillOK(t *testing.T) {
	up := &fakeUpserter{err: errors.New("sink down")}
	h, _ := newTestHandler(up)

	rec := postJSON(t, h, "/intake", `{"name": "Sam"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp IntakeResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.OK || resp.JobID == "" {
		t.Errorf("response = %+v, submitter should still get a job id", resp)
	}
}

func TestInboundSMS_ForwardsAndReturnsTwiML(t *testing.T) {
	const reply = `<?xml version="1.0" encoding="UTF-8"?><Response><Message>We haul anything!</Message></Response>`

	h, _ := newTestHandler(&fakeUpserter{})
	fwd := &fakeForwarder{twiml: reply}
	h.WithForwarder(fwd)

	form := url.Values{}
	form.Set("From", "+15550001111")
	form.Set("To", "+15550002222")
	form.Set("Body", "how much for a couch?")
	rec := postForm(t, h, "/webhooks/sms", form)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.String() != reply {
		t.Errorf("body = %q, want platform TwiML verbatim", rec.Body.String())
	}
	if fwd.gotForm.Get("Body") != "how much for a couch?" {
		t.Errorf("forwarded form = %v", fwd.gotForm)
	}
}

func TestInboundSMS_ForwardFailureFallsBackToEmptyTwiML(t *testing.T) {
	h, _ := newTestHandler(&fakeUpserter{})
	h.WithForwarder(&fakeForwarder{err: errors.New("platform down")})

	form := url.Values{}
	form.Set("From", "+15550001111")
	rec := postForm(t, h, "/webhooks/inbound-sms", form)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 on forward failure", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Response></Response>") {
		t.Errorf("body = %q, want empty TwiML", rec.Body.String())
	}
}

func TestInboundSMS_NoForwarderConfigured(t *testing.T) {
	h, _ := newTestHandler(&fakeUpserter{})

	form := url.Values{}
	form.Set("From", "+15550001111")
	rec := postForm(t, h, "/webhooks/sms", form)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Response></Response>") {
		t.Errorf("body = %q, want empty TwiML", rec.Body.String())
	}
}

func TestInboundSMS_NotifiesOwner(t *testing.T) {
	h, _ := newTestHandler(&fakeUpserter{})
	notifier := &fakeNotifier{}
	h.WithNotifier(notifier)

	form := url.Values{}
	form.Set("From", "+15550001111")
	form.Set("Body", "pics attached")
	form.Set("NumMedia", "2")
	form.Set("MediaUrl0", "https://img.example.com/a.jpg")
	form.Set("MediaContentType0", "image/jpeg")
	form.Set("MediaUrl1", "https://img.example.com/b.jpg")
	postForm(t, h, "/webhooks/sms", form)

	events := notifier.all()
	if len(events) != 1 {
		t.Fatalf("got %d notify events, want 1", len(events))
	}
	if events[0].Kind != "sms" {
		t.Errorf("Kind = %q", events[0].Kind)
	}
	if !strings.Contains(events[0].Message, "2 attachment(s)") {
		t.Errorf("Message = %q", events[0].Message)
	}
}

func TestCallStatus_Acknowledged(t *testing.T) {
	h, _ := newTestHandler(&fakeUpserter{})

	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("CallStatus", "completed")
	rec := postForm(t, h, "/twilio/call-status", form)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestToolCall_NotifiesOwnerWithSummary(t *testing.T) {
	h, _ := newTestHandler(&fakeUpserter{})
	notifier := &fakeNotifier{}
	h.WithNotifier(notifier)

	postJSON(t, h, "/vapi/webhook", `{
		"message": {
			"call": {"id": "call-n"},
			"toolCalls": [
				{"id": "tc-1", "function": {"name": "create_intake", "arguments": {"name": "Dana", "phone": "555-1234", "urgent": true}}}
			]
		}
	}`)

	events := notifier.all()
	if len(events) != 1 {
		t.Fatalf("got %d notify events, want 1", len(events))
	}
	msg := events[0].Message
	for _, want := range []string{"Dana", "555-1234", "URGENT"} {
		if !strings.Contains(msg, want) {
			t.Errorf("summary %q missing %q", msg, want)
		}
	}
	if events[0].ID == uuid.Nil {
		t.Error("event id not assigned")
	}
}

func TestNotify_DropOnFullBufferDoesNotFail(t *testing.T) {
	h, _ := newTestHandler(&fakeUpserter{})
	h.WithNotifier(&fakeNotifier{full: true})

	rec := postJSON(t, h, "/intake", `{"name": "Sam"}`)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, drop must not affect the response", rec.Code)
	}
}
