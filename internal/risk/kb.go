package risk

import (
	"log/slog"
	"os"
)

// LoadDoc reads a knowledge-base document (deployment policies, incident
// history) used as classification context. A missing or unreadable file
// degrades to an empty document with a warning: classification still runs,
// just with less context.
func LoadDoc(path string) string {
	if path == "" {
		return ""
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("knowledge document unavailable", "path", path, "error", err)
		return ""
	}
	return string(raw)
}
