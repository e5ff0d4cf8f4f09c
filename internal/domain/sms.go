package domain

// InboundSMS is a Twilio-style inbound message parsed from form fields.
type InboundSMS struct {
	From  string
	To    string
	Body  string
	Media []MediaItem
}

type MediaItem struct {
	URL         string
	ContentType string
}
