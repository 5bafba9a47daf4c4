package metrics

import "time"

type Metrics interface {
	// Business
	RecordRadarComputation(trigger string, nearby int)
	RecordFixFailure(reason string)
	RecordLocationPublished(status string)
	RecordUseCaseExecution(useCaseName string, success bool, duration time.Duration)

	// Infrastructure (HTTP & WebSocket)
	ObserveHTTPRequestDuration(method, path, statusCode string, duration float64)
	SetActiveSessions(n int)

	// Messaging
	IncEventsConsumed(handler, status string)
}
