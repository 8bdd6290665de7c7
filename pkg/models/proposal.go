// Package models defines the domain types shared across the simulation
// pipeline: proposals, reactions, zone sentiments, transcripts, and the
// world-state snapshot.
package models

// Proposal kinds.
const (
	ProposalBuild  = "build"
	ProposalPolicy = "policy"
)

// Location kinds.
const (
	LocationNone    = "none"
	LocationZone    = "zone"
	LocationPoint   = "point"
	LocationPolygon = "polygon"
)

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ProposalLocation specifies where a proposal applies.
type ProposalLocation struct {
	Kind    string                 `json:"kind"`
	ZoneIDs []string               `json:"zone_ids,omitempty"`
	Point   *GeoPoint              `json:"point,omitempty"`
	Polygon map[string]interface{} `json:"polygon,omitempty"`
}

// ProposalParameters carries tunable proposal values.
type ProposalParameters struct {
	Scale          float64  `json:"scale"`
	BudgetMillions *float64 `json:"budget_millions,omitempty"`
	TargetGroup    string   `json:"target_group,omitempty"`
}

// ProximityBucket labels how close a zone is to a placed build.
const (
	ProximityNear   = "near"
	ProximityMedium = "medium"
	ProximityFar    = "far"
)

// AffectedRegion describes one zone's exposure to a placed build
// proposal, ordered nearest first.
type AffectedRegion struct {
	ZoneID         string  `json:"zone_id"`
	DistanceMeters float64 `json:"distance_meters"`
	Bucket         string  `json:"bucket"`
	Weight         float64 `json:"weight"`
}

// InterpretedProposal is the structured interpretation of the user's
// free-text message. Immutable once produced.
type InterpretedProposal struct {
	Type       string             `json:"type"`
	Title      string             `json:"title"`
	Summary    string             `json:"summary"`
	Location   ProposalLocation   `json:"location"`
	Parameters ProposalParameters `json:"parameters"`

	// Populated for drag-drop build placements.
	AffectedRegions  []AffectedRegion `json:"affected_regions,omitempty"`
	ContainingZoneID string           `json:"containing_zone_id,omitempty"`
}

// InterpretResult is the outcome of a single interpretation call.
// Parse failures produce OK=false, never an error.
type InterpretResult struct {
	OK                  bool                 `json:"ok"`
	Proposal            *InterpretedProposal `json:"proposal,omitempty"`
	Assumptions         []string             `json:"assumptions,omitempty"`
	ClarifyingQuestions []string             `json:"clarifying_questions,omitempty"`
	Confidence          float64              `json:"confidence"`
	Error               string               `json:"error,omitempty"`
}
