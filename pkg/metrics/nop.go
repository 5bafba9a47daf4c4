package metrics

import "time"

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordRadarComputation(string, int)                         {}
func (Nop) RecordFixFailure(string)                                    {}
func (Nop) RecordLocationPublished(string)                             {}
func (Nop) RecordUseCaseExecution(string, bool, time.Duration)         {}
func (Nop) ObserveHTTPRequestDuration(string, string, string, float64) {}
func (Nop) SetActiveSessions(int)                                      {}
func (Nop) IncEventsConsumed(string, string)                           {}
