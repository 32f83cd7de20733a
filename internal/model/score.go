package model

import (
	"encoding/json"
	"math"
)

// ScoreBreakdown records each factor's contribution to a similarity score.
// One field per factor keeps the breakdown type-safe and directly testable;
// a factor that did not contribute stays at zero.
type ScoreBreakdown struct {
	LocationRadius      float64 `json:"location_radius,omitempty"`
	LocationName        float64 `json:"location_name,omitempty"`
	DetailLocation      float64 `json:"detail_location,omitempty"`
	LocationDescription float64 `json:"location_description,omitempty"`
	NonCompliance       float64 `json:"non_compliance,omitempty"`
	SubNonCompliance    float64 `json:"sub_non_compliance,omitempty"`
	FindingDescription  float64 `json:"finding_description,omitempty"`
}

// Total sums all factor contributions without clamping.
func (b ScoreBreakdown) Total() float64 {
	return b.LocationRadius + b.LocationName + b.DetailLocation +
		b.LocationDescription + b.NonCompliance + b.SubNonCompliance +
		b.FindingDescription
}

// ScoredCandidate pairs a candidate report with its similarity score
// against a submission. Distance is the great-circle distance in km between
// the two locations; math.Inf(1) when either side has no coordinates.
type ScoredCandidate struct {
	Report    *Report        `json:"report"`
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
	Distance  float64        `json:"distance_km"`
}

// HasDistance reports whether a real geo distance was computed for this
// candidate.
func (c *ScoredCandidate) HasDistance() bool {
	return !math.IsInf(c.Distance, 1)
}

// MarshalJSON drops distance_km when no geo distance was computed; JSON
// has no representation for infinity.
func (c ScoredCandidate) MarshalJSON() ([]byte, error) {
	type alias ScoredCandidate
	out := struct {
		alias
		Distance *float64 `json:"distance_km,omitempty"`
	}{alias: alias(c)}
	if c.HasDistance() {
		out.Distance = &c.Distance
	}
	return json.Marshal(out)
}

// UnmarshalJSON mirrors MarshalJSON: a missing distance_km is read back
// as the no-distance sentinel.
func (c *ScoredCandidate) UnmarshalJSON(data []byte) error {
	type alias ScoredCandidate
	in := struct {
		*alias
		Distance *float64 `json:"distance_km"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Distance != nil {
		c.Distance = *in.Distance
	} else {
		c.Distance = math.Inf(1)
	}
	return nil
}
