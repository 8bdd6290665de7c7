package config

import "strings"

// DefaultModel is used for every upstream call unless a per-agent
// override supplies a different allow-listed model.
const (
	DefaultModel    = "gemini-2.5-flash"
	DefaultProvider = "google"
)

// AllowedModels is the closed set of models an agent override may select.
var AllowedModels = []string{
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"claude-3-5-haiku",
	"claude-sonnet-4",
	"amazon.nova-micro-v1:0",
	"amazon.nova-lite-v1:0",
	"amazon.nova-pro-v1:0",
	"gpt-4o-mini",
}

// providerByPrefix maps model name prefixes to gateway provider ids.
var providerByPrefix = []struct {
	prefix   string
	provider string
}{
	{"gemini", "google"},
	{"claude", "anthropic"},
	{"amazon.nova", "amazon"},
	{"gpt", "openai"},
}

// ProviderForModel derives the gateway provider from the model name.
// Unknown models fall back to the default provider.
func ProviderForModel(model string) string {
	for _, entry := range providerByPrefix {
		if strings.HasPrefix(model, entry.prefix) {
			return entry.provider
		}
	}
	return DefaultProvider
}

// ValidateModel reports whether the model is in the allow-list.
func ValidateModel(model string) bool {
	for _, allowed := range AllowedModels {
		if model == allowed {
			return true
		}
	}
	return false
}

// ModelFamily buckets a model name for the provider-mix display string.
func ModelFamily(model string) string {
	switch {
	case strings.Contains(model, "nova"):
		return "nova"
	case strings.Contains(model, "haiku"):
		return "haiku"
	case strings.Contains(model, "gemini"):
		return "gemini"
	default:
		return "other"
	}
}
