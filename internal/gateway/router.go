package gateway

import (
	"fmt"
	"strings"
)

// Router sends to one of several gateways. Chat IDs may carry the gateway
// name as a prefix ("discord:1234"); unprefixed IDs go to Default.
type Router struct {
	Gateways map[string]Messenger
	Default  string
}

func NewRouter() *Router {
	return &Router{Gateways: make(map[string]Messenger)}
}

// Add registers m under name. The first gateway added becomes the default.
func (r *Router) Add(name string, m Messenger) {
	r.Gateways[name] = m
	if r.Default == "" {
		r.Default = name
	}
}

func (r *Router) Send(chatID string, text string) error {
	name, id := r.Default, chatID
	if prefix, rest, ok := strings.Cut(chatID, ":"); ok {
		if _, known := r.Gateways[prefix]; known {
			name, id = prefix, rest
		}
	}
	m, ok := r.Gateways[name]
	if !ok {
		return fmt.Errorf("no gateway for chat %s", chatID)
	}
	return m.Send(id, text)
}
