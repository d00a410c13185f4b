// Package governance decides whether a resolved step may reach the browser.
package governance

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request describes a step that is about to reach the browser driver.
type Request struct {
	Action      string
	Arguments   string // resolved params as JSON
	URL         string // navigation target, goto only
	ExecutionID string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine denies actions by name and arguments by pattern, and
// optionally limits navigation to a set of hosts.
type DefaultPolicyEngine struct {
	DeniedActions map[string]bool
	DeniedRegex   []*regexp.Regexp
	// AllowedHosts limits goto targets. Empty allows any host. A leading
	// "." matches subdomains.
	AllowedHosts []string
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedActions: make(map[string]bool),
	}
}

func (e *DefaultPolicyEngine) DenyAction(name string) {
	e.DeniedActions[name] = true
}

func (e *DefaultPolicyEngine) DenyArguments(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("deny pattern: %w", err)
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

func (e *DefaultPolicyEngine) AllowHosts(hosts ...string) {
	for _, h := range hosts {
		e.AllowedHosts = append(e.AllowedHosts, strings.ToLower(strings.TrimSpace(h)))
	}
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.DeniedActions[req.Action] {
		return deny("action %s is disabled by policy", req.Action), nil
	}
	for _, re := range e.DeniedRegex {
		if re.MatchString(req.Arguments) {
			return deny("arguments match restricted pattern %s", re), nil
		}
	}
	if req.URL != "" && len(e.AllowedHosts) > 0 {
		u, err := url.Parse(req.URL)
		if err != nil || u.Hostname() == "" {
			return deny("cannot check host of %q", req.URL), nil
		}
		if !e.hostAllowed(u.Hostname()) {
			return deny("host %s is not in the allowed hosts", u.Hostname()), nil
		}
	}
	return Result{Effect: EffectAllow, Reason: "allowed"}, nil
}

func (e *DefaultPolicyEngine) hostAllowed(host string) bool {
	host = strings.ToLower(host)
	for _, allowed := range e.AllowedHosts {
		if host == allowed || (strings.HasPrefix(allowed, ".") && (strings.HasSuffix(host, allowed) || host == allowed[1:])) {
			return true
		}
	}
	return false
}

func deny(format string, args ...any) Result {
	return Result{Effect: EffectDeny, Reason: fmt.Sprintf(format, args...)}
}
