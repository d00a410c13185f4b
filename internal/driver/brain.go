package driver

import (
	"context"
	"errors"
)

// ErrElementNotFound is returned when no element on the page matches a
// natural-language description.
var ErrElementNotFound = errors.New("element not found")

// Element is an interactive node offered to the Brain when locating.
type Element struct {
	ID          string `json:"id"`
	Tag         string `json:"tag"`
	Role        string `json:"role,omitempty"`
	Type        string `json:"type,omitempty"`
	Text        string `json:"text,omitempty"`
	Label       string `json:"label,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Href        string `json:"href,omitempty"`
}

// ExtractKind is the shape of answer a query expects.
type ExtractKind string

const (
	ExtractData    ExtractKind = "data"
	ExtractString  ExtractKind = "string"
	ExtractNumber  ExtractKind = "number"
	ExtractBoolean ExtractKind = "boolean"
)

// Verdict is the Brain's judgement of a statement about the page.
type Verdict struct {
	Pass   bool   `json:"pass"`
	Reason string `json:"reason"`
}

// Brain answers questions about the page for the driver.
type Brain interface {
	// Locate returns the ID of the element matching prompt, or "" if none does.
	Locate(ctx context.Context, prompt string, elements []Element) (string, error)
	Extract(ctx context.Context, kind ExtractKind, demand, page string, opts map[string]any) (any, error)
	Judge(ctx context.Context, statement, page string) (Verdict, error)
}
