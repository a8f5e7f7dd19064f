// Package browser resolves the active tab of a browser process.
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrNoTab is returned when the browser has no resolvable active tab.
var ErrNoTab = errors.New("no active tab")

// Tab is the resolved active tab.
type Tab struct {
	URL    string `json:"url"`
	Domain string `json:"domain"`
}

// Resolver returns the active tab of the browser process pid.
type Resolver interface {
	ResolveActiveTab(ctx context.Context, pid int) (*Tab, error)
}

// CommandResolver runs an external helper as `<command> <pid>` and reads a
// JSON object with the tab URL from its stdout. Both {"active_app": url}
// and {"url": url} are accepted.
type CommandResolver struct {
	name    string
	args    []string
	timeout time.Duration
}

// NewCommandResolver splits command on whitespace. It returns nil for an
// empty command.
func NewCommandResolver(command string, timeout time.Duration) *CommandResolver {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CommandResolver{name: fields[0], args: fields[1:], timeout: timeout}
}

type helperOutput struct {
	ActiveApp string `json:"active_app"`
	URL       string `json:"url"`
}

// ResolveActiveTab implements Resolver.
func (r *CommandResolver) ResolveActiveTab(ctx context.Context, pid int) (*Tab, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("invalid browser pid %d: %w", pid, ErrNoTab)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := append(append([]string(nil), r.args...), strconv.Itoa(pid))
	cmd := exec.CommandContext(ctx, r.name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("tab helper failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var out helperOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return nil, fmt.Errorf("failed to parse tab helper output: %w", err)
	}

	raw := out.URL
	if raw == "" {
		raw = out.ActiveApp
	}
	if raw == "" || raw == "undefined" || raw == "null" {
		return nil, ErrNoTab
	}

	return &Tab{URL: raw, Domain: Domain(raw)}, nil
}

// Domain extracts the host of a URL without a leading "www.". Inputs
// without a scheme are treated as hosts.
func Domain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// IsBrowser reports whether class is one of classes, ignoring case.
func IsBrowser(class string, classes []string) bool {
	for _, c := range classes {
		if strings.EqualFold(class, c) {
			return true
		}
	}
	return false
}
