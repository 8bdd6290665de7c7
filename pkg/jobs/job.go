package jobs

import (
	"math"

	"github.com/kingston-civic/civicsim/pkg/models"
)

// Job statuses.
const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusError    = "error"
)

// SimulationJob is the full record of a progressive simulation run. It
// is serialized whole to the durable store on every update.
type SimulationJob struct {
	JobID     string  `json:"job_id"`
	SessionID string  `json:"session_id"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	Phase     Phase   `json:"phase"`
	Message   string  `json:"message"`

	RequestPayload map[string]interface{} `json:"request_payload,omitempty"`

	CompletedAgents  int                        `json:"completed_agents"`
	TotalAgents      int                        `json:"total_agents"`
	PartialReactions []models.AgentReaction     `json:"partial_reactions"`
	PartialZones     []models.ZoneSentiment     `json:"partial_zones"`
	Result           *models.MultiAgentResponse `json:"result,omitempty"`
	Error            string                     `json:"error,omitempty"`

	CreatedAt   float64 `json:"created_at"`
	StartedAt   float64 `json:"started_at,omitempty"`
	CompletedAt float64 `json:"completed_at,omitempty"`
}

// Clone returns a copy of the job that is safe to share across
// goroutines. Slice and map headers get their own backing storage;
// element values are never mutated after being appended.
func (j *SimulationJob) Clone() *SimulationJob {
	clone := *j
	if j.RequestPayload != nil {
		clone.RequestPayload = make(map[string]interface{}, len(j.RequestPayload))
		for k, v := range j.RequestPayload {
			clone.RequestPayload[k] = v
		}
	}
	if j.PartialReactions != nil {
		clone.PartialReactions = append([]models.AgentReaction(nil), j.PartialReactions...)
	}
	if j.PartialZones != nil {
		clone.PartialZones = append([]models.ZoneSentiment(nil), j.PartialZones...)
	}
	if j.Result != nil {
		result := *j.Result
		clone.Result = &result
	}
	return &clone
}

// StatusResponse is the polling view of a job.
type StatusResponse struct {
	JobID            string                     `json:"job_id"`
	Status           string                     `json:"status"`
	Progress         float64                    `json:"progress"`
	Phase            Phase                      `json:"phase"`
	Message          string                     `json:"message"`
	CompletedAgents  int                        `json:"completed_agents"`
	TotalAgents      int                        `json:"total_agents"`
	PartialReactions []models.AgentReaction     `json:"partial_reactions"`
	PartialZones     []models.ZoneSentiment     `json:"partial_zones"`
	Result           *models.MultiAgentResponse `json:"result,omitempty"`
	Error            string                     `json:"error,omitempty"`
}

// ToStatusResponse projects the job into its polling shape. Progress is
// rounded to one decimal place.
func (j *SimulationJob) ToStatusResponse() StatusResponse {
	reactions := j.PartialReactions
	if reactions == nil {
		reactions = []models.AgentReaction{}
	}
	zones := j.PartialZones
	if zones == nil {
		zones = []models.ZoneSentiment{}
	}
	return StatusResponse{
		JobID:            j.JobID,
		Status:           j.Status,
		Progress:         math.Round(j.Progress*10) / 10,
		Phase:            j.Phase,
		Message:          j.Message,
		CompletedAgents:  j.CompletedAgents,
		TotalAgents:      j.TotalAgents,
		PartialReactions: reactions,
		PartialZones:     zones,
		Result:           j.Result,
		Error:            j.Error,
	}
}
