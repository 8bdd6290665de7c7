package config

import (
	"fmt"
	"log/slog"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// CatalogYAML is the optional civicsim.yaml file structure. It lets a
// deployment tweak agent personas and display fields without a rebuild.
type CatalogYAML struct {
	Agents map[string]AgentYAMLOverride `yaml:"agents"`
}

// AgentYAMLOverride holds the fields a deployment may override per agent.
// Empty fields keep the built-in value.
type AgentYAMLOverride struct {
	DisplayName   string   `yaml:"display_name,omitempty"`
	Role          string   `yaml:"role,omitempty"`
	Avatar        string   `yaml:"avatar,omitempty"`
	Bio           string   `yaml:"bio,omitempty"`
	Tags          []string `yaml:"tags,omitempty"`
	SpeakingStyle string   `yaml:"speaking_style,omitempty"`
	Persona       string   `yaml:"persona,omitempty"`
}

// LoadCatalogOverrides reads the YAML file at path, if present, and
// merges its per-agent overrides over the built-in catalog. A missing
// file is not an error. Unknown agent keys fail loading so typos are
// caught at startup.
func LoadCatalogOverrides(path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("No catalog override file, using built-in agents", "path", path)
			return nil
		}
		return fmt.Errorf("failed to read catalog overrides: %w", err)
	}

	var overrides CatalogYAML
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("failed to parse catalog overrides: %w", err)
	}

	for key, override := range overrides.Agents {
		agent := GetAgent(key)
		if agent == nil {
			return fmt.Errorf("catalog override references unknown agent %q", key)
		}
		patch := Agent{
			DisplayName:   override.DisplayName,
			Role:          override.Role,
			Avatar:        override.Avatar,
			Bio:           override.Bio,
			Tags:          override.Tags,
			SpeakingStyle: override.SpeakingStyle,
			Persona:       override.Persona,
		}
		if err := mergo.Merge(agent, patch, mergo.WithOverride); err != nil {
			return fmt.Errorf("failed to merge override for agent %q: %w", key, err)
		}
		logger.Info("Applied catalog override", "agent", key)
	}
	return nil
}
