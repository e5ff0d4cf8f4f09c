package domain

// IntakeRecord is the normalized row sent to the spreadsheet sink. JSON keys
// match the sheet's header row exactly; the sink upserts by "Job ID".
//
// Every field is always present: absent source data becomes an empty string,
// never an omitted key.
type IntakeRecord struct {
	JobID        string `json:"Job ID"`
	CustomerName string `json:"Name"`
	Phone        string `json:"Phone"`
	Email        string `json:"Email"`
	Address      string `json:"Address"`
	JobType      string `json:"Job Type"`
	Scope        string `json:"Scope"`
	Preferred    string `json:"Preferred Time"`
	Urgent       string `json:"Urgent"`
	PhotoLink    string `json:"Photo Link"`
	Status       string `json:"Status"`
	Source       string `json:"Source"`
	ReceivedAt   string `json:"Timestamp"`
}

// SinkResponse is the outcome of one upsert attempt against the sheet sink.
type SinkResponse struct {
	// Skipped is true when no sink URL is configured. Not an error.
	Skipped bool

	StatusCode int

	// Body is the sink's JSON response, parsed best-effort. Unparsable
	// bodies are wrapped as {"raw": <text>}.
	Body map[string]any
}
