package preflight

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// CheckEmbedderReachable pings an Ollama daemon's /api/tags endpoint.
// This check is skipped entirely in offline mode (WithOffline), since
// the static embedder (spec.md §4.F) needs no network collaborator.
func (c *Checker) CheckEmbedderReachable(ctx context.Context) CheckResult {
	result := CheckResult{Name: "embedder_reachable", Required: false}

	url := "http://127.0.0.1:11434/api/tags"
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("could not build request: %v", err)
		return result
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Status = StatusWarn
		result.Message = "Ollama not reachable at 127.0.0.1:11434 (will fall back to the static embedder)"
		result.Details = err.Error()
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("Ollama responded with status %d", resp.StatusCode)
		return result
	}

	result.Status = StatusPass
	result.Message = "Ollama reachable at 127.0.0.1:11434"
	return result
}
