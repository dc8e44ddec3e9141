package gateway

import "time"

// Metrics receives gateway level observations. A nil Metrics disables them.
type Metrics interface {
	// ObserveOperation records one store, lookup or delete call.
	ObserveOperation(kind, operation string, duration time.Duration, err error)

	// ObserveNormalization records one package rewrite.
	ObserveNormalization(duration time.Duration, err error)
}
