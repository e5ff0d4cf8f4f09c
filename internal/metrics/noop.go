package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) EventReceived(endpoint string)                                {}
func (n *NoopSink) SinkPostCompleted(statusClass string, duration time.Duration) {}
func (n *NoopSink) SinkPostOutcome(outcome string)                               {}
func (n *NoopSink) CorrelationTableSize(size int)                                {}
func (n *NoopSink) CorrelationEvictions(count int)                               {}
func (n *NoopSink) NotifyOutcome(channel, outcome string)                        {}
func (n *NoopSink) NotifyBufferSizeUpdate(size int)                              {}
func (n *NoopSink) NotifyBufferCapacitySet(capacity int)                         {}
func (n *NoopSink) NotifyDropped()                                               {}
