package main

import (
	"context"
	"errors"
	"net"

	"smarttracker/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		if apiErr.NotFound() {
			lines = append(lines, "hint: run `smarttracker list` to see existing activity ids.")
		}
		if apiErr.Code == "resource_exhausted" {
			lines = append(lines, "hint: retry shortly; the server limits concurrent uploads.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify SMARTTRACKER_API_URL points to a smarttracker server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase SMARTTRACKER_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a smarttracker server is running at SMARTTRACKER_API_URL.",
			"hint: start one with: smarttracker srv",
		)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
