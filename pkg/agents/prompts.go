// Package agents implements the simulation roles that talk to the
// Backboard gateway: the proposal interpreter, the fan-out reactor, the
// town hall moderator, direct messaging, and decision adoption.
package agents

import (
	"fmt"
	"strings"

	"github.com/kingston-civic/civicsim/pkg/config"
	"github.com/kingston-civic/civicsim/pkg/models"
)

// Assistant names registered upstream, one per role.
const (
	interpreterAssistantName = "CivicSim Interpreter"
	reactorAssistantName     = "CivicSim Agent"
	townhallAssistantName    = "CivicSim Town Hall"
	dmAssistantName          = "CivicSim DM"
)

// System prompts for the role assistants.
const (
	interpreterSystemPrompt = "You interpret civic proposals into structured JSON. Always respond with valid JSON only."
	reactorSystemPrompt     = "You are a Kingston resident reacting to civic proposals. Respond in character with valid JSON only."
	townhallSystemPrompt    = "You moderate town hall meetings and generate realistic debate transcripts. Respond with valid JSON only."
	dmSystemPrompt          = "You facilitate direct conversations between civic stakeholders. Respond in character."
)

// interpretPrompt renders the interpretation instruction for a user
// message. The schema is described in prose so no JSON braces appear in
// the prompt itself.
func interpretPrompt(message string) string {
	zoneNames := make([]string, 0, len(config.Zones))
	for _, zone := range config.Zones {
		zoneNames = append(zoneNames, zone.Name)
	}
	zoneIDs := strings.Join(config.AllZoneIDs(), ", ")

	var b strings.Builder
	b.WriteString("You are interpreting a civic proposal for Kingston, Ontario.\n\n")
	b.WriteString("Convert the user's message into a structured proposal. Determine if it's a BUILD action (spatial: parks, housing, transit, etc.) or a POLICY action (citywide: taxes, subsidies, regulations, etc.).\n\n")
	b.WriteString("Known Kingston zones: " + strings.Join(zoneNames, ", ") + ".\n\n")
	b.WriteString("Respond with ONLY valid JSON in this exact format:\n")
	b.WriteString("- ok: true if interpretation succeeded, false if unclear\n")
	b.WriteString("- proposal.type: \"build\" or \"policy\"\n")
	b.WriteString("- proposal.title: short title (5-10 words)\n")
	b.WriteString("- proposal.summary: one sentence description\n")
	b.WriteString("- proposal.location.kind: \"none\", \"zone\", \"point\", or \"polygon\"\n")
	b.WriteString("- proposal.location.zone_ids: list of affected zone IDs if kind=\"zone\" (use: " + zoneIDs + ")\n")
	b.WriteString("- proposal.parameters.scale: 1.0 default, adjust for \"double\" (2.0), \"small\" (0.5), etc.\n")
	b.WriteString("- proposal.parameters.budget_millions: if mentioned\n")
	b.WriteString("- proposal.parameters.target_group: if targeting specific group (low-income, students, etc.)\n")
	b.WriteString("- assumptions: list of assumptions you made\n")
	b.WriteString("- clarifying_questions: questions if input is ambiguous (max 2)\n")
	b.WriteString("- confidence: 0-1 how confident in interpretation\n\n")
	b.WriteString("USER MESSAGE: " + message + "\n\n")
	b.WriteString("Respond with JSON only, no other text.")
	return b.String()
}

// reactionPrompt renders a single agent's reaction instruction:
// role+zone context, persona (or override), optional world state, the
// proposal, an optional proximity hint for the agent's own zone, and
// the strict JSON schema.
func reactionPrompt(agent *config.Agent, persona string, proposal *models.InterpretedProposal, worldState *models.WorldStateSummary) string {
	if persona == "" {
		persona = agent.Persona
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s.\n\n", agent.DisplayName, agent.Role)
	b.WriteString(persona)
	b.WriteString("\n")

	if context := worldState.PromptContext(); context != "" {
		b.WriteString(context)
	}

	fmt.Fprintf(&b, "\nA civic proposal has been made in Kingston:\n")
	fmt.Fprintf(&b, "TITLE: %s\n", proposal.Title)
	fmt.Fprintf(&b, "TYPE: %s\n", proposal.Type)
	fmt.Fprintf(&b, "SUMMARY: %s\n", proposal.Summary)
	fmt.Fprintf(&b, "AFFECTED AREAS: %s\n", affectedZoneNames(proposal))

	if hint := proximityHint(agent.Key, proposal); hint != "" {
		b.WriteString(hint + "\n")
	}

	b.WriteString("\nBased on your persona, priorities, and concerns, provide your reaction.\n\n")
	b.WriteString("Respond with ONLY valid JSON:\n")
	b.WriteString("- stance: \"support\", \"oppose\", or \"neutral\"\n")
	b.WriteString("- intensity: 0.0 to 1.0 (how strongly you feel)\n")
	b.WriteString("- support_reasons: list of 0-3 reasons you support (if any)\n")
	b.WriteString("- concerns: list of 0-3 concerns you have\n")
	b.WriteString("- quote: your reaction in 25 words or less, in first person, in character\n")
	b.WriteString("- what_would_change_my_mind: 1-3 things that would shift your position\n")
	b.WriteString("- zones_most_affected: list of zones you think are most impacted, each with zone_id, effect (support/oppose/neutral), intensity\n")
	b.WriteString("- proposed_amendments: 0-3 changes you'd propose to improve it\n\n")
	b.WriteString("Available zone_ids: " + strings.Join(config.AllZoneIDs(), ", ") + "\n\n")
	b.WriteString("Respond with JSON only.")
	return b.String()
}

// affectedZoneNames resolves the proposal's zone ids to display names,
// defaulting to "Citywide".
func affectedZoneNames(proposal *models.InterpretedProposal) string {
	names := make([]string, 0, len(proposal.Location.ZoneIDs))
	for _, zoneID := range proposal.Location.ZoneIDs {
		if zone := config.GetZone(zoneID); zone != nil {
			names = append(names, zone.Name)
		}
	}
	if len(names) == 0 {
		return "Citywide"
	}
	return strings.Join(names, ", ")
}

// proximityHint renders a one-sentence distance cue for the agent's own
// zone when the proposal carries drag-drop placement data.
func proximityHint(agentKey string, proposal *models.InterpretedProposal) string {
	for _, region := range proposal.AffectedRegions {
		if region.ZoneID != agentKey {
			continue
		}
		switch region.Bucket {
		case models.ProximityNear:
			return fmt.Sprintf("NOTE: This is being placed right in or next to your neighborhood (about %.0fm away). It will directly affect your daily life.", region.DistanceMeters)
		case models.ProximityMedium:
			return fmt.Sprintf("NOTE: This is being placed a moderate distance from your neighborhood (about %.0fm away). You would notice its effects but not daily.", region.DistanceMeters)
		case models.ProximityFar:
			return fmt.Sprintf("NOTE: This is being placed far from your neighborhood (about %.0fm away). Any effect on you would be indirect.", region.DistanceMeters)
		}
	}
	return ""
}

// townhallPrompt renders the moderator instruction over the collected
// reactions.
func townhallPrompt(proposal *models.InterpretedProposal, reactions []models.AgentReaction) string {
	var b strings.Builder
	b.WriteString("You are a moderator for a Kingston town hall meeting about a civic proposal.\n\n")
	fmt.Fprintf(&b, "PROPOSAL: %s\n", proposal.Title)
	fmt.Fprintf(&b, "TYPE: %s\n", proposal.Type)
	fmt.Fprintf(&b, "SUMMARY: %s\n\n", proposal.Summary)
	b.WriteString("STAKEHOLDER REACTIONS:\n")
	b.WriteString(formatReactions(reactions))
	b.WriteString("\n\nGenerate a realistic, engaging town hall transcript with 6-10 turns. Include:\n")
	b.WriteString("1. Moderator opening summary\n")
	b.WriteString("2. Back-and-forth dialogue between stakeholders\n")
	b.WriteString("3. Some tension/disagreement\n")
	b.WriteString("4. At least one moment of agreement or common ground\n")
	b.WriteString("5. Moderator closing with compromise options\n\n")
	b.WriteString("Respond with ONLY valid JSON:\n")
	b.WriteString("- moderator_summary: 2-3 sentence overview of the debate\n")
	b.WriteString("- turns: array of speaker turns, each with \"speaker\" (name or \"Moderator\") and \"text\" (max 40 words)\n")
	b.WriteString("- compromise_options: 1-3 potential middle-ground solutions\n\n")
	b.WriteString("Keep it realistic and engaging. Each turn should be max 40 words.\n")
	b.WriteString("Respond with JSON only.")
	return b.String()
}

// formatReactions renders the per-agent stance lines fed to the
// moderator.
func formatReactions(reactions []models.AgentReaction) string {
	var lines []string
	for _, r := range reactions {
		emoji := "🤔"
		switch r.Stance {
		case models.StanceSupport:
			emoji = "👍"
		case models.StanceOppose:
			emoji = "👎"
		}
		lines = append(lines, fmt.Sprintf("- %s (%s): %s %s", r.AgentName, r.Avatar, emoji, strings.ToUpper(r.Stance)))
		if r.Quote != "" {
			lines = append(lines, fmt.Sprintf("  Quote: %q", r.Quote))
		}
		if len(r.Concerns) > 0 {
			lines = append(lines, "  Concerns: "+strings.Join(firstN(r.Concerns, 2), ", "))
		}
		if len(r.SupportReasons) > 0 {
			lines = append(lines, "  Supports because: "+strings.Join(firstN(r.SupportReasons, 2), ", "))
		}
	}
	return strings.Join(lines, "\n")
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
