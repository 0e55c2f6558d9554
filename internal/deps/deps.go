package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"spool/internal/config"
)

// Requirement defines an external binary spool relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

const versionTimeout = 5 * time.Second

// Requirements lists the binaries the configured engines execute.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpeg,
			Description: "Runs ProRes, DNxHR, H.264, HEVC and audio presets; also used by the AV1 engine",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Tools.FFprobe,
			Description: "Reads source duration for progress percentages",
			Optional:    true,
		},
	}
}

// Check resolves every configured requirement and records its version banner.
func Check(ctx context.Context, cfg *config.Config) []Status {
	results := CheckBinaries(Requirements(cfg))
	for i := range results {
		if !results[i].Available {
			continue
		}
		version, err := Version(ctx, results[i].Command)
		if err != nil {
			results[i].Detail = fmt.Sprintf("version check failed: %v", err)
			continue
		}
		results[i].Version = version
	}
	return results
}

// CheckBinaries evaluates the provided requirements and reports availability.
// Available entries carry the resolved absolute path.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Command = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable non-optional dependencies.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
