package model

// ClusterAssignment is a (report, cluster) pair as stored.
// Used by the pain-point scan, which only needs identifiers.
type ClusterAssignment struct {
	ReportID  string `json:"report_id"`
	ClusterID string `json:"cluster_id"`
}

// PainPointCluster is a cluster of recurring similar reports large enough
// to indicate a systemic problem. Aggregates are computed from the actual
// membership on every call, never persisted.
type PainPointCluster struct {
	ClusterID        string   `json:"cluster_id"`
	MemberCount      int      `json:"member_count"`
	ReportIDs        []string `json:"report_ids"`
	DominantLocation string   `json:"dominant_location"`
	DominantCategory string   `json:"dominant_category"`
	// AvgPairwiseScore is the mean similarity score over all member pairs.
	AvgPairwiseScore float64 `json:"avg_pairwise_score"`
}
