package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jessewayne86/junk-dispatch/internal/domain"
	"github.com/jessewayne86/junk-dispatch/internal/event"
	"github.com/jessewayne86/junk-dispatch/internal/intake"
	"github.com/jessewayne86/junk-dispatch/internal/metrics"
	"github.com/jessewayne86/junk-dispatch/internal/smsrelay"
)

// Correlator ties call ids to job ids across independent webhook requests.
type Correlator interface {
	ResolveOrCreate(callID string) domain.JobID
	Bind(callID string, jobID domain.JobID)
	Lookup(callID string) (domain.JobID, bool)
}

// Upserter sends normalized records to the spreadsheet sink.
type Upserter interface {
	Send(ctx context.Context, record domain.IntakeRecord) (domain.SinkResponse, error)
}

// Notifier enqueues owner notifications. Emit must not block; false means
// the event was dropped.
type Notifier interface {
	Emit(event domain.NotifyEvent) bool
}

// SMSForwarder relays inbound SMS form payloads to the voice platform.
type SMSForwarder interface {
	Enabled() bool
	Forward(ctx context.Context, form url.Values) (string, error)
}

// AnalyticsSink counts intake events. The sink handles errors internally.
type AnalyticsSink interface {
	Record(ctx context.Context, sourceTag string)
}

// MetricsSink records handler metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	EventReceived(endpoint string)
	SinkPostCompleted(statusClass string, duration time.Duration)
	SinkPostOutcome(outcome string)
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

// Handler routes inbound webhook traffic.
//
// The two webhook-consuming endpoints (/vapi/webhook and the SMS webhooks)
// always answer 200 no matter what happens internally: the upstream
// platforms retry on non-200, and a retry storm is worse than a silently
// dropped record. Failures are logged out of band.
type Handler struct {
	correlator Correlator
	normalizer *intake.Normalizer
	upserter   Upserter

	notifier  Notifier      // optional, nil = disabled
	forwarder SMSForwarder  // optional, nil = disabled
	analytics AnalyticsSink // optional, nil = disabled
	metrics   MetricsSink   // optional, nil = disabled

	publicBaseURL string
}

func NewHandler(correlator Correlator, normalizer *intake.Normalizer, upserter Upserter) *Handler {
	return &Handler{
		correlator: correlator,
		normalizer: normalizer,
		upserter:   upserter,
	}
}

// WithNotifier attaches the owner-notification bus.
func (h *Handler) WithNotifier(n Notifier) *Handler {
	h.notifier = n
	return h
}

// WithForwarder attaches the inbound-SMS forwarder.
func (h *Handler) WithForwarder(f SMSForwarder) *Handler {
	h.forwarder = f
	return h
}

// WithAnalytics attaches an analytics sink.
func (h *Handler) WithAnalytics(sink AnalyticsSink) *Handler {
	h.analytics = sink
	return h
}

// WithMetrics attaches a metrics sink.
func (h *Handler) WithMetrics(sink MetricsSink) *Handler {
	h.metrics = sink
	return h
}

// WithPublicBaseURL sets the base URL used to build photo upload links.
func (h *Handler) WithPublicBaseURL(base string) *Handler {
	h.publicBaseURL = strings.TrimRight(base, "/")
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/vapi/webhook" && r.Method == http.MethodPost:
		h.vapiWebhook(w, r)

	case path == "/intake" && r.Method == http.MethodPost:
		h.intake(w, r)

	case (path == "/webhooks/sms" || path == "/webhooks/inbound-sms") && r.Method == http.MethodPost:
		h.inboundSMS(w, r)

	case path == "/twilio/call-status" && r.Method == http.MethodPost:
		h.callStatus(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ok")
}

// vapiWebhook handles voice-platform events. Always responds 200.
//
// Tool-call events are processed per tool call and answered with a
// toolCallResults body; end-of-call reports trigger the final normalized
// write for the call's job.
func (h *Handler) vapiWebhook(w http.ResponseWriter, r *http.Request) {
	h.received("vapi")

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("api: vapi webhook: unreadable payload: %v", err)
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}

	callID := event.CallID(payload)

	if toolCalls := event.ToolCalls(payload); len(toolCalls) > 0 {
		results := make([]ToolCallResult, 0, len(toolCalls))
		for _, tc := range toolCalls {
			results = append(results, ToolCallResult{
				ToolCallID: tc.ID,
				Result:     h.handleToolCall(r.Context(), callID, tc),
			})
		}
		writeJSON(w, http.StatusOK, ToolCallResponse{ToolCallResults: results})
		return
	}

	if event.Type(payload) == "end-of-call-report" {
		h.handleCallReport(r.Context(), callID, payload)
	}

	writeJSON(w, http.StatusOK, map[string]any{})
}

// intakeToolNames are the voice-agent tools that carry intake data.
var intakeToolNames = map[string]bool{
	"create_intake": true,
	"update_intake": true,
}

// handleToolCall processes one tool invocation and returns the result string
// echoed back to the voice platform. Downstream failures surface only here.
func (h *Handler) handleToolCall(ctx context.Context, callID string, tc domain.ToolCall) string {
	if !intakeToolNames[tc.Name] {
		log.Printf("api: vapi webhook: no handler for tool %q", tc.Name)
		return fmt.Sprintf("no handler for tool %q", tc.Name)
	}

	jobID := h.resolveJob(callID, tc.Arguments)
	rec := h.normalizer.Normalize(tc.Arguments, jobID, "vapi-tool")

	if err := h.upsert(ctx, rec); err != nil {
		return fmt.Sprintf("failed to save intake for job %s", jobID)
	}

	h.record(ctx, "vapi-tool")
	h.notify(domain.NotifyEvent{
		JobID:   jobID,
		Kind:    "intake",
		Subject: "New intake " + string(jobID),
		Message: ownerSummary(rec),
	})

	return fmt.Sprintf("intake recorded under job %s", jobID)
}

// handleCallReport writes the final normalized record after hangup.
func (h *Handler) handleCallReport(ctx context.Context, callID string, payload map[string]any) {
	structured := event.StructuredData(payload)
	jobID := h.resolveJob(callID, structured)
	rec := h.normalizer.Normalize(structured, jobID, "vapi-call")

	if err := h.upsert(ctx, rec); err != nil {
		return
	}

	h.record(ctx, "vapi-call")
	h.notify(domain.NotifyEvent{
		JobID:   jobID,
		Kind:    "call-report",
		Subject: "Call report " + string(jobID),
		Message: ownerSummary(rec),
	})
}

// intake handles direct intake submissions (web form or API client).
// The structured data may arrive nested under message.analysis.structuredData
// or as the top-level body.
func (h *Handler) intake(w http.ResponseWriter, r *http.Request) {
	h.received("intake")

	payload := decodeIntakeBody(w, r)

	structured := event.StructuredData(payload)
	if len(structured) == 0 {
		structured = payload
	}

	callID := event.CallID(payload)
	jobID := h.resolveJob(callID, structured)
	rec := h.normalizer.Normalize(structured, jobID, "intake")

	if rec.PhotoLink == "" && h.publicBaseURL != "" {
		rec.PhotoLink = h.publicBaseURL + "/photos/" + string(jobID)
	}

	// Failures are logged inside upsert; the submitter still gets its job id.
	_ = h.upsert(r.Context(), rec)

	h.record(r.Context(), "intake")
	h.notify(domain.NotifyEvent{
		JobID:   jobID,
		Kind:    "intake",
		Subject: "New intake " + string(jobID),
		Message: ownerSummary(rec),
	})

	writeJSON(w, http.StatusOK, IntakeResponse{
		OK:        true,
		JobID:     string(jobID),
		PhotoLink: rec.PhotoLink,
	})
}

// inboundSMS handles Twilio-style inbound messages. Always responds 200 with
// a TwiML body: the platform's autoresponse when forwarding succeeds, an
// empty <Response/> otherwise.
func (h *Handler) inboundSMS(w http.ResponseWriter, r *http.Request) {
	h.received("sms")

	twiml := smsrelay.EmptyTwiML

	if err := r.ParseForm(); err != nil {
		log.Printf("api: inbound sms: unreadable form: %v", err)
		writeTwiML(w, twiml)
		return
	}

	msg := parseInboundSMS(r.PostForm)
	log.Printf("api: inbound sms from=%s to=%s media=%d", msg.From, msg.To, len(msg.Media))

	h.record(r.Context(), "sms")
	h.notify(domain.NotifyEvent{
		Kind:    "sms",
		Subject: "New SMS from " + msg.From,
		Message: smsSummary(msg),
	})

	if h.forwarder != nil && h.forwarder.Enabled() {
		out, err := h.forwarder.Forward(r.Context(), r.PostForm)
		if err != nil {
			log.Printf("api: inbound sms: forward failed: %v", err)
		} else {
			twiml = out
		}
	}

	writeTwiML(w, twiml)
}

// callStatus logs call lifecycle callbacks. Nothing else to do with them.
func (h *Handler) callStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		log.Printf("api: call status: unreadable form: %v", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	log.Printf("api: call status sid=%s status=%s from=%s",
		r.PostForm.Get("CallSid"), r.PostForm.Get("CallStatus"), r.PostForm.Get("From"))
	w.WriteHeader(http.StatusOK)
}

// resolveJob picks the job id for an event. An explicit jobId in the
// structured data always wins and is bound over any locally minted id;
// otherwise the correlation table resolves or mints one.
func (h *Handler) resolveJob(callID string, structured map[string]any) domain.JobID {
	if explicit, ok := structured["jobId"].(string); ok && explicit != "" {
		jobID := domain.JobID(explicit)
		h.correlator.Bind(callID, jobID)
		return jobID
	}
	return h.correlator.ResolveOrCreate(callID)
}

// upsert sends one record to the sheet sink, recording metrics and logging
// failures. The returned error is for callers that surface the outcome (tool
// call results); everyone else ignores it.
func (h *Handler) upsert(ctx context.Context, rec domain.IntakeRecord) error {
	start := time.Now()
	resp, err := h.upserter.Send(ctx, rec)

	if h.metrics != nil && !resp.Skipped {
		h.metrics.SinkPostCompleted(metrics.ClassifyStatus(resp.StatusCode, err), time.Since(start))
	}

	switch {
	case err != nil:
		log.Printf("api: sheet upsert failed job=%s: %v", rec.JobID, err)
		h.sinkOutcome(metrics.OutcomeFailed)
		return err
	case resp.Skipped:
		log.Printf("api: sheet sink not configured, skipped upsert job=%s", rec.JobID)
		h.sinkOutcome(metrics.OutcomeSkipped)
		return nil
	default:
		h.sinkOutcome(metrics.OutcomeSuccess)
		return nil
	}
}

func (h *Handler) notify(ev domain.NotifyEvent) {
	if h.notifier == nil {
		return
	}
	ev.ID = uuid.New()
	ev.CreatedAt = time.Now().UTC()
	if !h.notifier.Emit(ev) {
		log.Printf("api: notify buffer full, dropped event kind=%s job=%s", ev.Kind, ev.JobID)
	}
}

func (h *Handler) record(ctx context.Context, sourceTag string) {
	if h.analytics != nil {
		h.analytics.Record(ctx, sourceTag)
	}
}

func (h *Handler) received(endpoint string) {
	if h.metrics != nil {
		h.metrics.EventReceived(endpoint)
	}
}

func (h *Handler) sinkOutcome(outcome string) {
	if h.metrics != nil {
		h.metrics.SinkPostOutcome(outcome)
	}
}

// decodeIntakeBody reads an intake submission as a generic map. JSON bodies
// decode directly; form bodies become a flat string map. Malformed input
// degrades to an empty map, never an error response.
func decodeIntakeBody(w http.ResponseWriter, r *http.Request) map[string]any {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if contentType == "application/x-www-form-urlencoded" || contentType == "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			log.Printf("api: intake: unreadable form: %v", err)
			return map[string]any{}
		}
		payload := make(map[string]any, len(r.PostForm))
		for key := range r.PostForm {
			payload[key] = r.PostForm.Get(key)
		}
		return payload
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload == nil {
		if err != nil {
			log.Printf("api: intake: unreadable json: %v", err)
		}
		return map[string]any{}
	}
	return payload
}

// parseInboundSMS maps Twilio form fields to a domain message. NumMedia
// drives the MediaUrl{n}/MediaContentType{n} lookups.
func parseInboundSMS(form url.Values) domain.InboundSMS {
	msg := domain.InboundSMS{
		From: form.Get("From"),
		To:   form.Get("To"),
		Body: form.Get("Body"),
	}

	numMedia, err := strconv.Atoi(form.Get("NumMedia"))
	if err != nil || numMedia <= 0 {
		return msg
	}

	for i := 0; i < numMedia; i++ {
		mediaURL := form.Get("MediaUrl" + strconv.Itoa(i))
		if mediaURL == "" {
			continue
		}
		msg.Media = append(msg.Media, domain.MediaItem{
			URL:         mediaURL,
			ContentType: form.Get("MediaContentType" + strconv.Itoa(i)),
		})
	}
	return msg
}

// ownerSummary renders a record as a short human-readable alert.
func ownerSummary(rec domain.IntakeRecord) string {
	parts := []string{"Job " + rec.JobID}
	if rec.CustomerName != "" {
		parts = append(parts, rec.CustomerName)
	}
	if rec.Phone != "" {
		parts = append(parts, rec.Phone)
	}
	if rec.Address != "" {
		parts = append(parts, rec.Address)
	}
	if rec.Scope != "" {
		parts = append(parts, rec.Scope)
	}
	if rec.Urgent == "Y" {
		parts = append(parts, "URGENT")
	}
	return strings.Join(parts, " - ")
}

func smsSummary(msg domain.InboundSMS) string {
	summary := fmt.Sprintf("SMS from %s: %s", msg.From, msg.Body)
	if len(msg.Media) > 0 {
		summary += fmt.Sprintf(" (%d attachment(s))", len(msg.Media))
	}
	return summary
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeTwiML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
