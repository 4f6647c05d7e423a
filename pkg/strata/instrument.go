package strata

import "time"

// Instrument observes store activity. Implementations must be safe for
// synchronous invocation from inside mutation calls and must not mutate the
// store they observe. The pkg/telemetry package provides Prometheus and
// OpenTelemetry implementations.
type Instrument interface {
	// MutationObserved is called once per mutation with the changed path and
	// the mutated node's kind.
	MutationObserved(path string, kind Kind)

	// SubscriptionAdded is called after a subscription registers; active is
	// the total live subscription count.
	SubscriptionAdded(path string, active int)

	// SubscriptionRemoved is called after an unsubscribe takes effect.
	SubscriptionRemoved(path string, active int)

	// NotifyCompleted is called after a notification wave finishes, with the
	// number of callbacks delivered and the wall time the wave took.
	NotifyCompleted(path string, delivered int, elapsed time.Duration)
}
