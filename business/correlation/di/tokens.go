// Package di contains dependency injection tokens and accessors for the
// correlation bounded context.
package di

import (
	"github.com/fd1az/arbdetectd/business/correlation/app"
	"github.com/fd1az/arbdetectd/internal/di"
)

// DI tokens for the correlation module.
const (
	Tracker = "correlation.Tracker"
)

// GetTracker fetches the shared CorrelationTracker. Detection reads
// speculative re-check hints exclusively through it.
func GetTracker(sr di.ServiceRegistry) *app.Tracker {
	return di.MustGetTyped[*app.Tracker](sr, Tracker)
}
