package models

// SimulationReceipt records metadata about one simulation run.
type SimulationReceipt struct {
	Provider   string `json:"provider"`
	Memory     string `json:"memory"`
	ModelName  string `json:"model_name"`
	AgentCount int    `json:"agent_count"`
	DurationMS int64  `json:"duration_ms"`
	RunHash    string `json:"run_hash"`
	Timestamp  string `json:"timestamp"`
}

// MultiAgentResponse is the locked contract of a full simulation run.
type MultiAgentResponse struct {
	SessionID        string               `json:"session_id"`
	ThreadID         string               `json:"thread_id"`
	AssistantMessage string               `json:"assistant_message"`
	Proposal         *InterpretedProposal `json:"proposal"`
	Reactions        []AgentReaction      `json:"reactions"`
	Zones            []ZoneSentiment      `json:"zones"`
	TownHall         *TownHallTranscript  `json:"town_hall"`
	Receipt          SimulationReceipt    `json:"receipt"`
	Error            string               `json:"error,omitempty"`
}
