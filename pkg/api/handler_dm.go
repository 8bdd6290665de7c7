package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kingston-civic/civicsim/pkg/agents"
	"github.com/kingston-civic/civicsim/pkg/ledger"
	"github.com/kingston-civic/civicsim/pkg/models"
)

// DMRequest is the body of POST /v1/ai/dm.
type DMRequest struct {
	SessionID     string `json:"session_id"`
	FromAgentKey  string `json:"from_agent_key"`
	ToAgentKey    string `json:"to_agent_key"`
	Message       string `json:"message"`
	ProposalTitle string `json:"proposal_title"`
}

// AdoptedProposalData identifies the proposal being decided.
type AdoptedProposalData struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// AdoptedEventRequest is the decision record sent by the caller.
type AdoptedEventRequest struct {
	ID          string                `json:"id"`
	Timestamp   string                `json:"timestamp"`
	Proposal    AdoptedProposalData   `json:"proposal"`
	Outcome     string                `json:"outcome"`
	VoteSummary agents.VoteSummary    `json:"vote_summary"`
	KeyQuotes   []agents.AdoptedQuote `json:"key_quotes"`
	ZoneDeltas  []agents.ZoneDelta    `json:"zone_deltas"`
}

// AdoptRequest is the body of POST /v1/ai/adopt.
type AdoptRequest struct {
	SessionID    string              `json:"session_id"`
	AdoptedEvent AdoptedEventRequest `json:"adopted_event"`
}

// AdoptResponse acknowledges the recorded decision.
type AdoptResponse struct {
	Success           bool     `json:"success"`
	ThreadsUpdated    []string `json:"threads_updated"`
	ProposalTitle     string   `json:"proposal_title"`
	Outcome           string   `json:"outcome"`
	WorldStateVersion int      `json:"world_state_version"`
}

// sendDM handles POST /v1/ai/dm: one agent-to-agent direct message with
// a structured stance assessment.
func (s *Server) sendDM(c *gin.Context) {
	var req DMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.SessionID == "" || strings.TrimSpace(req.Message) == "" {
		badRequest(c, "session_id and message are required")
		return
	}

	sess := s.sessions.GetOrCreate(req.SessionID)
	result, err := s.dm.Send(c.Request.Context(), sess, agents.DMInput{
		FromAgentKey:  req.FromAgentKey,
		ToAgentKey:    req.ToAgentKey,
		Message:       req.Message,
		ProposalTitle: req.ProposalTitle,
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	s.ledger.WriteEvent(c.Request.Context(), req.SessionID, ledger.EventDMShift, models.RelationshipShift{
		FromAgent: req.ToAgentKey,
		ToAgent:   req.FromAgentKey,
		Score:     result.RelationshipScore,
		Reason:    result.StanceUpdate.Reason,
	})

	c.JSON(http.StatusOK, result)
}

// adopt handles POST /v1/ai/adopt: broadcasts the decision record into
// every session thread and appends it to the durable world state.
func (s *Server) adopt(c *gin.Context) {
	var req AdoptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.SessionID == "" {
		badRequest(c, "session_id is required")
		return
	}

	event := agents.AdoptionEvent{
		ID:              req.AdoptedEvent.ID,
		Timestamp:       req.AdoptedEvent.Timestamp,
		ProposalType:    req.AdoptedEvent.Proposal.Type,
		ProposalTitle:   req.AdoptedEvent.Proposal.Title,
		ProposalSummary: req.AdoptedEvent.Proposal.Summary,
		Outcome:         req.AdoptedEvent.Outcome,
		VoteSummary:     req.AdoptedEvent.VoteSummary,
		KeyQuotes:       req.AdoptedEvent.KeyQuotes,
		ZoneDeltas:      req.AdoptedEvent.ZoneDeltas,
	}

	sess := s.sessions.GetOrCreate(req.SessionID)
	result := s.adopter.Adopt(c.Request.Context(), sess, event)

	s.writeAdoptionLedger(c, req.SessionID, event)

	c.JSON(http.StatusOK, AdoptResponse{
		Success:           true,
		ThreadsUpdated:    result.ThreadsUpdated,
		ProposalTitle:     result.ProposalTitle,
		Outcome:           result.Outcome,
		WorldStateVersion: result.WorldStateVersion,
	})
}

// writeAdoptionLedger mirrors the world-state append into the durable
// event log so restarts rebuild the same snapshot.
func (s *Server) writeAdoptionLedger(c *gin.Context, sessionID string, event agents.AdoptionEvent) {
	if event.ProposalType == models.ProposalBuild {
		s.ledger.WriteEvent(c.Request.Context(), sessionID, ledger.EventBuildAdopted, models.PlacedItemSummary{
			ID:    event.ID,
			Type:  event.ProposalType,
			Title: event.ProposalTitle,
			Emoji: "🏗️",
		})
		return
	}

	total := event.VoteSummary.Support + event.VoteSummary.Oppose + event.VoteSummary.Neutral
	votePct := 0.0
	if total > 0 {
		votePct = float64(event.VoteSummary.Support) * 100 / float64(total)
	}
	s.ledger.WriteEvent(c.Request.Context(), sessionID, ledger.EventPolicyAdopted, models.AdoptedPolicySummary{
		ID:        event.ID,
		Title:     event.ProposalTitle,
		Summary:   event.ProposalSummary,
		Outcome:   event.Outcome,
		VotePct:   votePct,
		Timestamp: event.Timestamp,
	})
}

// relationshipEdge is the wire shape of one relationship for the UI.
type relationshipEdge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
}

// relationships handles GET /v1/ai/relationships/:session_id: the top
// ten edges by absolute score.
func (s *Server) relationships(c *gin.Context) {
	sessionID := c.Param("session_id")
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	edges := make([]relationshipEdge, 0, 10)
	for _, e := range sess.TopRelationships(10) {
		edges = append(edges, relationshipEdge{
			From:   e.From,
			To:     e.To,
			Score:  e.Score,
			Reason: e.Reason,
		})
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "edges": edges})
}
