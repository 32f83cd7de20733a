// Package model defines the shared data types for the hazard similarity engine.
package model

import (
	"time"
)

// ReportStatus represents the review lifecycle state of a hazard report.
// The engine never drives transitions; it only observes status when
// filtering candidate sets.
type ReportStatus string

const (
	StatusPendingReview   ReportStatus = "PENDING_REVIEW"
	StatusUnderEvaluation ReportStatus = "UNDER_EVALUATION"
	StatusInProgress      ReportStatus = "IN_PROGRESS"
	StatusCompleted       ReportStatus = "COMPLETED"
	StatusDuplicate       ReportStatus = "DUPLIKAT"
	StatusNotHazard       ReportStatus = "BUKAN_HAZARD"
)

// UnreviewedStatuses are the states a report can be in before a reviewer
// has made a call. Post-save similarity checks are restricted to these.
var UnreviewedStatuses = []ReportStatus{StatusPendingReview, StatusUnderEvaluation}

// Coordinates is a WGS84 latitude/longitude pair in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Report is a stored safety-hazard report. Reports are created by the
// submission flow (external to this engine) and mutated only to set
// Status and ClusterID.
type Report struct {
	ID                  string       `json:"id"`
	TrackingCode        string       `json:"tracking_code"`
	ReporterName        string       `json:"reporter_name"`
	LocationName        string       `json:"location_name"`
	DetailLocation      string       `json:"detail_location,omitempty"`
	LocationDescription string       `json:"location_description,omitempty"`
	NonCompliance       string       `json:"non_compliance"`
	SubNonCompliance    string       `json:"sub_non_compliance"`
	FindingDescription  string       `json:"finding_description"`
	Coords              *Coordinates `json:"coords,omitempty"`
	Status              ReportStatus `json:"status"`
	ClusterID           *string      `json:"cluster_id,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
}

// Submission carries the fields of a not-yet-saved report for the
// pre-save duplicate check. It mirrors Report minus identity and lifecycle.
type Submission struct {
	LocationName        string       `json:"location_name"`
	DetailLocation      string       `json:"detail_location,omitempty"`
	LocationDescription string       `json:"location_description,omitempty"`
	NonCompliance       string       `json:"non_compliance"`
	SubNonCompliance    string       `json:"sub_non_compliance"`
	FindingDescription  string       `json:"finding_description"`
	Coords              *Coordinates `json:"coords,omitempty"`
}

// SubmissionFromReport projects a saved report onto the submission shape
// so the post-save check can reuse the same scoring path.
func SubmissionFromReport(r *Report) Submission {
	return Submission{
		LocationName:        r.LocationName,
		DetailLocation:      r.DetailLocation,
		LocationDescription: r.LocationDescription,
		NonCompliance:       r.NonCompliance,
		SubNonCompliance:    r.SubNonCompliance,
		FindingDescription:  r.FindingDescription,
		Coords:              r.Coords,
	}
}
