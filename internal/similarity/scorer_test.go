package similarity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fieldsafe/hazard-engine/internal/config"
	"github.com/fieldsafe/hazard-engine/internal/model"
)

func testConfig() config.SimilarityConfig {
	return config.SimilarityConfig{
		TimeWindowDays:   7,
		LocationRadiusKm: 1.0,
		Threshold:        0.75,
		TopN:             10,
		MinClusterSize:   3,
		Weights: config.SimilarityWeights{
			LocationRadius:      0.15,
			LocationName:        0.15,
			DetailLocation:      0.05,
			LocationDescription: 0.10,
			NonCompliance:       0.15,
			SubNonCompliance:    0.10,
			FindingDescription:  0.30,
		},
	}
}

func candidateReport(id string) *model.Report {
	return &model.Report{
		ID:                 id,
		LocationName:       "Warehouse B",
		DetailLocation:     "Rack 12",
		NonCompliance:      "Unsafe Condition",
		SubNonCompliance:   "Housekeeping",
		FindingDescription: "Oil spill near the loading dock",
		Status:             model.StatusPendingReview,
		CreatedAt:          time.Now().Add(-48 * time.Hour),
	}
}

func TestScore_AllFactorsMatch(t *testing.T) {
	cfg := testConfig()
	cand := candidateReport("r1")
	cand.LocationDescription = "next to the forklift lane"
	cand.Coords = &model.Coordinates{Latitude: -6.2, Longitude: 106.8}

	sub := model.SubmissionFromReport(cand)

	got := Score(sub, cand, cfg)
	assert.InDelta(t, 1.0, got.Score, 0.001)
	assert.Equal(t, cfg.Weights.LocationRadius, got.Breakdown.LocationRadius)
	assert.Equal(t, cfg.Weights.FindingDescription, got.Breakdown.FindingDescription)
	assert.True(t, got.HasDistance())
	assert.Equal(t, 0.0, got.Distance)
}

func TestScore_NoFactorsMatch(t *testing.T) {
	cfg := testConfig()
	sub := model.Submission{
		LocationName:       "Dock A",
		NonCompliance:      "Unsafe Act",
		SubNonCompliance:   "PPE",
		FindingDescription: "qqqq",
	}

	got := Score(sub, candidateReport("r1"), cfg)
	assert.Less(t, got.Score, 0.05)
	assert.Equal(t, 0.0, got.Breakdown.LocationName)
	assert.False(t, got.HasDistance())
}

func TestScore_MissingCoordinatesSkipsRadius(t *testing.T) {
	cfg := testConfig()
	cand := candidateReport("r1")
	sub := model.SubmissionFromReport(cand)
	sub.Coords = &model.Coordinates{Latitude: -6.2, Longitude: 106.8}

	// Candidate has no coordinates: radius factor must contribute zero,
	// not full weight.
	got := Score(sub, cand, cfg)
	assert.Equal(t, 0.0, got.Breakdown.LocationRadius)
	assert.False(t, got.HasDistance())
}

func TestScore_OutsideRadius(t *testing.T) {
	cfg := testConfig()
	cand := candidateReport("r1")
	cand.Coords = &model.Coordinates{Latitude: -6.2, Longitude: 106.8}
	sub := model.SubmissionFromReport(cand)
	// ~50 km east.
	sub.Coords = &model.Coordinates{Latitude: -6.2, Longitude: 107.25}

	got := Score(sub, cand, cfg)
	assert.Equal(t, 0.0, got.Breakdown.LocationRadius)
	assert.True(t, got.HasDistance())
	assert.Greater(t, got.Distance, 40.0)
}

func TestScore_DetailLocationOnlyWhenBothPresent(t *testing.T) {
	cfg := testConfig()
	cand := candidateReport("r1")
	sub := model.SubmissionFromReport(cand)
	sub.DetailLocation = ""

	got := Score(sub, cand, cfg)
	assert.Equal(t, 0.0, got.Breakdown.DetailLocation)
}

func TestScore_Monotonicity(t *testing.T) {
	cfg := testConfig()
	cand := candidateReport("r1")

	sub := model.Submission{
		LocationName:       "Somewhere Else",
		NonCompliance:      "Other",
		SubNonCompliance:   "Other",
		FindingDescription: "unrelated finding text entirely",
	}
	base := Score(sub, cand, cfg).Score

	// Matching one more factor must never decrease the total.
	sub.LocationName = cand.LocationName
	withName := Score(sub, cand, cfg).Score
	assert.GreaterOrEqual(t, withName, base)

	sub.NonCompliance = cand.NonCompliance
	withCategory := Score(sub, cand, cfg).Score
	assert.GreaterOrEqual(t, withCategory, withName)

	sub.FindingDescription = cand.FindingDescription
	withFinding := Score(sub, cand, cfg).Score
	assert.GreaterOrEqual(t, withFinding, withCategory)
}

func TestScore_ClampedToUnitInterval(t *testing.T) {
	cfg := testConfig()
	// Deliberately unnormalized weights summing well above 1.
	cfg.Weights = config.SimilarityWeights{
		LocationName:       0.9,
		NonCompliance:      0.9,
		FindingDescription: 0.9,
	}
	cand := candidateReport("r1")
	sub := model.SubmissionFromReport(cand)

	got := Score(sub, cand, cfg)
	assert.Equal(t, 1.0, got.Score)
	// The unclamped breakdown still records full contributions.
	assert.InDelta(t, 2.7, got.Breakdown.Total(), 0.001)
}

// Scenario A from the acceptance checklist: same location name and
// category, findings with ~0.8 Jaccard overlap, weights
// {location_name: 0.3, non_compliance: 0.3, finding_description: 0.4}.
func TestScore_ScenarioA(t *testing.T) {
	cfg := testConfig()
	cfg.Weights = config.SimilarityWeights{
		LocationName:       0.3,
		NonCompliance:      0.3,
		FindingDescription: 0.4,
	}

	cand := candidateReport("r1")
	cand.FindingDescription = "pipa uap bocor di area boiler dekat tangga"
	sub := model.SubmissionFromReport(cand)
	// 8 of 9 distinct tokens shared: Jaccard ≈ 0.89, plus a high
	// Levenshtein similarity, so the finding factor lands near 0.9.
	sub.FindingDescription = "pipa uap bocor di area boiler dekat pintu"

	got := Score(sub, cand, cfg)
	assert.Greater(t, got.Score, 0.85)
	assert.GreaterOrEqual(t, got.Score, cfg.Threshold, "scenario A must be flagged similar")
	assert.Equal(t, 0.3, got.Breakdown.LocationName)
	assert.Equal(t, 0.3, got.Breakdown.NonCompliance)
}

// Scenario B: 50 km apart with a 1 km radius, different names and
// categories, near-unrelated findings. Only a sliver of finding weight
// contributes; the result stays far below the threshold.
func TestScore_ScenarioB(t *testing.T) {
	cfg := testConfig()

	cand := candidateReport("r1")
	cand.Coords = &model.Coordinates{Latitude: -6.2, Longitude: 106.8}
	cand.FindingDescription = "pekerja tidak memakai helm di area konstruksi"

	sub := model.Submission{
		LocationName:       "Plant Selatan",
		NonCompliance:      "Environment",
		SubNonCompliance:   "Spill",
		FindingDescription: "kabel listrik terkelupas dekat panel utama",
		Coords:             &model.Coordinates{Latitude: -6.2, Longitude: 107.25},
	}

	got := Score(sub, cand, cfg)
	assert.Less(t, got.Score, cfg.Threshold)
	assert.Less(t, got.Score, 0.2)
	assert.Equal(t, 0.0, got.Breakdown.LocationRadius)
}
