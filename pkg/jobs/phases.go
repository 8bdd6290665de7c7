// Package jobs implements the durable simulation job store and the
// phase/progress schedule for progressive runs.
package jobs

// Phase is one stage of a progressive simulation.
type Phase string

const (
	PhaseInitializing       Phase = "initializing"
	PhaseInterpreting       Phase = "interpreting"
	PhaseAnalyzingImpact    Phase = "analyzing_impact"
	PhaseAgentReactions     Phase = "agent_reactions"
	PhaseCoalitionSynthesis Phase = "coalition_synthesis"
	PhaseGeneratingTownhall Phase = "generating_townhall"
	PhaseFinalizing         Phase = "finalizing"
	PhaseComplete           Phase = "complete"
	PhaseError              Phase = "error"
)

// phaseOrder is the execution order of the weighted phases.
var phaseOrder = []Phase{
	PhaseInitializing,
	PhaseInterpreting,
	PhaseAnalyzingImpact,
	PhaseAgentReactions,
	PhaseCoalitionSynthesis,
	PhaseGeneratingTownhall,
	PhaseFinalizing,
}

// PhaseWeights are the progress points each phase contributes. They sum
// to 100.
var PhaseWeights = map[Phase]float64{
	PhaseInitializing:       5,
	PhaseInterpreting:       10,
	PhaseAnalyzingImpact:    10,
	PhaseAgentReactions:     50,
	PhaseCoalitionSynthesis: 10,
	PhaseGeneratingTownhall: 10,
	PhaseFinalizing:         5,
}

// PhaseStartProgress is the cumulative progress at the start of each
// phase.
var PhaseStartProgress = func() map[Phase]float64 {
	starts := make(map[Phase]float64, len(phaseOrder))
	cumulative := 0.0
	for _, phase := range phaseOrder {
		starts[phase] = cumulative
		cumulative += PhaseWeights[phase]
	}
	return starts
}()

// PhaseMessages are the default human-readable messages per phase.
var PhaseMessages = map[Phase]string{
	PhaseInitializing:       "Setting up simulation environment...",
	PhaseInterpreting:       "Analyzing your proposal...",
	PhaseAnalyzingImpact:    "Evaluating regional impacts...",
	PhaseAgentReactions:     "Gathering stakeholder reactions...",
	PhaseCoalitionSynthesis: "Identifying coalitions and conflicts...",
	PhaseGeneratingTownhall: "Generating town hall debate...",
	PhaseFinalizing:         "Preparing results...",
}
