// Package driver controls a browser through natural-language instructions.
package driver

import (
	"context"
	"time"
)

// ScrollOptions configures an ai_scroll step.
type ScrollOptions struct {
	Direction    string // up, down, left, right
	ScrollType   string // once, untilBottom, untilTop, untilLeft, untilRight
	LocatePrompt string // optional element to scroll instead of the page
}

// Driver is the AI browser capability the step dispatcher talks to. Every
// method blocks until the browser settles and returns whatever the action
// produced, or an error on hard failure.
type Driver interface {
	Goto(ctx context.Context, url string) (any, error)
	Input(ctx context.Context, text, locate string) (any, error)
	Tap(ctx context.Context, prompt string) (any, error)
	Query(ctx context.Context, demand string, opts map[string]any) (any, error)
	String(ctx context.Context, query string, opts map[string]any) (any, error)
	Number(ctx context.Context, query string, opts map[string]any) (any, error)
	Boolean(ctx context.Context, query string, opts map[string]any) (any, error)
	Assert(ctx context.Context, prompt string) (any, error)
	WaitFor(ctx context.Context, prompt string, timeout time.Duration) (any, error)
	Scroll(ctx context.Context, opts ScrollOptions) (any, error)

	// Screenshot captures the current page and returns where it was stored.
	Screenshot(ctx context.Context, stem string) (string, error)
}
