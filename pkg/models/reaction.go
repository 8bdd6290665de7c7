package models

// Stances.
const (
	StanceSupport = "support"
	StanceOppose  = "oppose"
	StanceNeutral = "neutral"
)

// ZoneEffect is an agent's perception of a proposal's effect on a zone.
type ZoneEffect struct {
	ZoneID    string  `json:"zone_id"`
	Effect    string  `json:"effect"`
	Intensity float64 `json:"intensity"`
}

// AgentReaction is a single agent's structured response to a proposal.
//
// AgentKey equals the agent's zone id (canonical rule).
type AgentReaction struct {
	AgentKey              string       `json:"agent_key"`
	AgentName             string       `json:"agent_name"`
	Avatar                string       `json:"avatar,omitempty"`
	Role                  string       `json:"role,omitempty"`
	Bio                   string       `json:"bio,omitempty"`
	Tags                  []string     `json:"tags,omitempty"`
	Stance                string       `json:"stance"`
	Intensity             float64      `json:"intensity"`
	SupportReasons        []string     `json:"support_reasons,omitempty"`
	Concerns              []string     `json:"concerns,omitempty"`
	Quote                 string       `json:"quote,omitempty"`
	WhatWouldChangeMyMind []string     `json:"what_would_change_my_mind,omitempty"`
	ZonesMostAffected     []ZoneEffect `json:"zones_most_affected,omitempty"`
	ProposedAmendments    []string     `json:"proposed_amendments,omitempty"`

	// Unix timestamp stamped when the reaction lands in a progressive
	// job, used by the active-calls view.
	CompletedAt float64 `json:"completed_at,omitempty"`
}

// QuoteAttribution pairs a quote with its source agent.
type QuoteAttribution struct {
	AgentName string `json:"agent_name"`
	Quote     string `json:"quote"`
}

// ZoneSentiment is the aggregated sentiment for one zone: a pure
// projection of its regional agent's reaction.
type ZoneSentiment struct {
	ZoneID           string             `json:"zone_id"`
	ZoneName         string             `json:"zone_name"`
	Sentiment        string             `json:"sentiment"`
	Score            float64            `json:"score"`
	TopSupportQuotes []QuoteAttribution `json:"top_support_quotes,omitempty"`
	TopOpposeQuotes  []QuoteAttribution `json:"top_oppose_quotes,omitempty"`
}
