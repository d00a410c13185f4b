package agent

import (
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Operation names one kind of question the Brain asks.
type Operation string

const (
	OpLocate  Operation = "locate"
	OpExtract Operation = "extract"
	OpJudge   Operation = "judge"
)

const defaultIdentity = `You are the eyes of a browser test runner. You read a description of the current web page and answer exactly one question about it.
Reply with a single JSON object and nothing else. Do not wrap it in markdown.`

var defaultPrompts = map[Operation]string{
	OpLocate: `You receive a TARGET description and a JSON list of ELEMENTS currently visible on the page.
Pick the one element the TARGET refers to. Prefer exact text or label matches, then placeholder, then role.
Reply {"result": "<id>"} using the element's id, or {"result": null} if no element matches.`,

	OpExtract: `You receive a QUESTION, an EXPECTED TYPE and the PAGE text. Answer the QUESTION from the PAGE only.
EXPECTED TYPE decides the shape of "result":
- data: a JSON object or array shaped the way the QUESTION describes
- string: a JSON string
- number: a JSON number, without units or thousands separators
- boolean: true or false
Reply {"result": <answer>}. If the PAGE does not contain the answer, reply {"result": null}.`,

	OpJudge: `You receive a STATEMENT and the PAGE text. Decide whether the STATEMENT is true for the PAGE.
Reply {"result": true, "reason": "<short evidence>"} or {"result": false, "reason": "<what is missing or different>"}.`,
}

// PromptManager builds system prompts. Files in Directory override the
// built-in text: identity.md replaces the shared preamble and
// <operation>.md replaces an operation's instructions.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// System returns the full system prompt for op.
func (pm *PromptManager) System(op Operation) string {
	identity := pm.read("identity.md", defaultIdentity)
	body := pm.read(string(op)+".md", defaultPrompts[op])
	return strings.Join([]string{identity, body}, "\n\n---\n\n")
}

func (pm *PromptManager) read(name, fallback string) string {
	if pm.Directory == "" {
		return fallback
	}
	path := filepath.Join(pm.Directory, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
		}
		return fallback
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return fallback
	}
	return text
}
