// Package gpu detects the local GPU model string for bind reporting.
package gpu

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// Detect returns the GPU model reported to the coordinator at bind time.
// A manual override always wins; otherwise nvidia-smi is queried for the
// first device's name. An empty string means nothing was detected — binding
// proceeds without a model and GPU verification stays with the coordinator.
func Detect(override string) string {
	if override != "" {
		return override
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader").Output()
	if err != nil {
		return ""
	}
	return firstLine(string(out))
}

// firstLine returns the first non-empty trimmed line of nvidia-smi output
// (one line per device; only the first device is reported).
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
