// Package di contains dependency injection tokens and accessors for
// the detection bounded context.
package di

import (
	"github.com/fd1az/arbdetectd/business/detection/app"
	"github.com/fd1az/arbdetectd/internal/di"
)

// DI tokens for the detection module.
const (
	GasFeed            = "detection.GasFeed"
	RiskScorer         = "detection.RiskScorer"
	CrossDexDetector   = "detection.CrossDexDetector"
	TriangularDetector = "detection.TriangularDetector"
	Orchestrator       = "detection.Orchestrator"
)

// GetGasFeed fetches the gas price port.
func GetGasFeed(sr di.ServiceRegistry) app.GasFeed {
	return di.MustGetTyped[app.GasFeed](sr, GasFeed)
}

// GetRiskScorer fetches the stateless MEV/competition risk scorer.
func GetRiskScorer(sr di.ServiceRegistry) *app.RiskScorer {
	return di.MustGetTyped[*app.RiskScorer](sr, RiskScorer)
}

// GetCrossDexDetector fetches the cross-DEX spread detector.
func GetCrossDexDetector(sr di.ServiceRegistry) *app.CrossDexDetector {
	return di.MustGetTyped[*app.CrossDexDetector](sr, CrossDexDetector)
}

// GetTriangularDetector fetches the 3-hop cycle detector.
func GetTriangularDetector(sr di.ServiceRegistry) *app.TriangularDetector {
	return di.MustGetTyped[*app.TriangularDetector](sr, TriangularDetector)
}

// GetOrchestrator fetches the detection cycle driver.
func GetOrchestrator(sr di.ServiceRegistry) *app.DetectionOrchestrator {
	return di.MustGetTyped[*app.DetectionOrchestrator](sr, Orchestrator)
}
