package agents

import "context"

// Gateway is the upstream surface the agent roles need. Satisfied by
// *backboard.Client.
type Gateway interface {
	CreateAssistant(ctx context.Context, name, systemPrompt string) (string, error)
	CreateThread(ctx context.Context, assistantID string) (string, error)
	SendMessage(ctx context.Context, threadID, content, model, provider string) (string, error)
}
