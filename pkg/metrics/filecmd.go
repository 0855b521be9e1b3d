package metrics

import "time"

// ServerMetrics provides observability for the file command adapter.
//
// Implementations collect request outcomes, throughput, connection lifecycle
// and pool state. This interface is optional: the adapter falls back to a
// no-op implementation when nil is passed.
//
// Example usage:
//
//	// With metrics enabled
//	metrics.InitRegistry()
//	m := prometheus.NewServerMetrics()
//	adapter := filecmd.New(config, pool, m)
//
//	// Without metrics (no-op)
//	adapter := filecmd.New(config, pool, nil)
type ServerMetrics interface {
	// RecordRequest records one processed frame.
	//
	// Parameters:
	//   - verb: Parsed verb ("list", "get", ...), or "invalid" for unparsable frames
	//   - status: "SUCCESS" or "FAILED"
	//   - duration: Time from frame extraction to response written
	RecordRequest(verb string, status string, duration time.Duration)

	// RecordBytes records bytes received ("in") or sent ("out").
	RecordBytes(direction string, bytes int64)

	// SetActiveConnections updates the number of open connections.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed counts connections closed by the shutdown timeout.
	RecordConnectionForceClosed()

	// RecordFrameRejected counts connections closed for an oversized frame.
	RecordFrameRejected()

	// SetQueueDepth updates the number of connections waiting for a worker.
	SetQueueDepth(depth int)

	// RecordWorkerRestart counts worker processes respawned after exiting.
	RecordWorkerRestart()
}

// NewNoopServerMetrics returns a ServerMetrics that discards everything.
func NewNoopServerMetrics() ServerMetrics {
	return noopServerMetrics{}
}

type noopServerMetrics struct{}

func (noopServerMetrics) RecordRequest(verb string, status string, duration time.Duration) {}
func (noopServerMetrics) RecordBytes(direction string, bytes int64)                        {}
func (noopServerMetrics) SetActiveConnections(count int32)                                 {}
func (noopServerMetrics) RecordConnectionAccepted()                                        {}
func (noopServerMetrics) RecordConnectionClosed()                                          {}
func (noopServerMetrics) RecordConnectionForceClosed()                                     {}
func (noopServerMetrics) RecordFrameRejected()                                             {}
func (noopServerMetrics) SetQueueDepth(depth int)                                          {}
func (noopServerMetrics) RecordWorkerRestart()                                             {}
