package config

import (
	"os"
	"strings"

	"github.com/PabloGalante/tutorchat/internal/observability"
)

// DefaultSystemPrompt is used when the prompt file cannot be read.
const DefaultSystemPrompt = "You are a helpful tutor."

// LoadSystemPrompt reads the tutor system prompt once at startup. A missing
// or empty file is not fatal: the default prompt is returned instead.
func LoadSystemPrompt(path string) string {
	log := observability.WithFields("path", path)

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn("could not read system prompt, using default", "error", err)
		return DefaultSystemPrompt
	}

	prompt := strings.TrimSpace(string(raw))
	if prompt == "" {
		log.Warn("system prompt file is empty, using default")
		return DefaultSystemPrompt
	}
	return prompt
}
