// Package similarity implements the multi-factor weighted scoring that
// decides whether two hazard reports describe the same underlying problem,
// plus the threshold/ranking step and the engine-facing duplicate checks.
package similarity

import (
	"math"

	"github.com/fieldsafe/hazard-engine/internal/config"
	"github.com/fieldsafe/hazard-engine/internal/geodist"
	"github.com/fieldsafe/hazard-engine/internal/model"
	"github.com/fieldsafe/hazard-engine/internal/textsim"
)

// Score compares a submission against one candidate report and returns the
// per-factor weighted score. Pure and synchronous: no I/O, no shared state.
//
// Binary factors (radius, location name, detail location, categories)
// contribute their full weight or nothing; continuous factors (location
// description, finding description) contribute text-similarity × weight.
// The total is clamped to [0,1].
func Score(sub model.Submission, candidate *model.Report, cfg config.SimilarityConfig) model.ScoredCandidate {
	w := cfg.Weights
	var b model.ScoreBreakdown

	// Location radius. Skipped entirely when either side has no coordinates.
	distance := math.Inf(1)
	if d, ok := geodist.Between(sub.Coords, candidate.Coords); ok {
		distance = d
		if d <= cfg.LocationRadiusKm {
			b.LocationRadius = w.LocationRadius
		}
	}

	if textsim.Equal(sub.LocationName, candidate.LocationName) {
		b.LocationName = w.LocationName
	}

	// Detail location is optional on both sides; only evaluated when both
	// supply one.
	if sub.DetailLocation != "" && candidate.DetailLocation != "" &&
		textsim.Equal(sub.DetailLocation, candidate.DetailLocation) {
		b.DetailLocation = w.DetailLocation
	}

	b.LocationDescription = textsim.Similarity(sub.LocationDescription, candidate.LocationDescription) * w.LocationDescription

	if textsim.Equal(sub.NonCompliance, candidate.NonCompliance) {
		b.NonCompliance = w.NonCompliance
	}
	if textsim.Equal(sub.SubNonCompliance, candidate.SubNonCompliance) {
		b.SubNonCompliance = w.SubNonCompliance
	}

	// Stored findings may be compound strings with labeled sections; compare
	// against the extracted description segment only.
	candidateFinding := ExtractDescription(candidate.FindingDescription)
	b.FindingDescription = textsim.Similarity(sub.FindingDescription, candidateFinding) * w.FindingDescription

	return model.ScoredCandidate{
		Report:    candidate,
		Score:     clamp01(b.Total()),
		Breakdown: b,
		Distance:  distance,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
