package models

// TranscriptTurn is a single turn in the town hall debate.
type TranscriptTurn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// TownHallTranscript is the moderated debate over a set of reactions.
type TownHallTranscript struct {
	ModeratorSummary  string           `json:"moderator_summary"`
	Turns             []TranscriptTurn `json:"turns"`
	CompromiseOptions []string         `json:"compromise_options,omitempty"`
}
