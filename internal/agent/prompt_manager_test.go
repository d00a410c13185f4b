package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPromptManager_Defaults(t *testing.T) {
	pm := NewPromptManager("")
	for _, op := range []Operation{OpLocate, OpExtract, OpJudge} {
		prompt := pm.System(op)
		if !strings.Contains(prompt, "single JSON object") {
			t.Errorf("%s: missing shared preamble", op)
		}
		if !strings.Contains(prompt, `"result"`) {
			t.Errorf("%s: missing result contract", op)
		}
	}
}

func TestPromptManager_Overrides(t *testing.T) {
	tempDir := t.TempDir()

	files := map[string]string{
		"identity.md": "Identity Content",
		"judge.md":    "Judge Content",
		"extract.md":  "   \n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tempDir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	pm := NewPromptManager(tempDir)

	judge := pm.System(OpJudge)
	if !strings.HasPrefix(judge, "Identity Content") {
		t.Errorf("identity override not applied: %q", judge)
	}
	if !strings.HasSuffix(judge, "Judge Content") {
		t.Errorf("judge override not applied: %q", judge)
	}
	if strings.Index(judge, "Identity Content") >= strings.Index(judge, "Judge Content") {
		t.Error("Identity should be before the operation prompt")
	}

	// Blank files fall back to the built-in text.
	if extract := pm.System(OpExtract); !strings.Contains(extract, "EXPECTED TYPE") {
		t.Errorf("blank override should fall back, got %q", extract)
	}
	if locate := pm.System(OpLocate); !strings.Contains(locate, "ELEMENTS") {
		t.Errorf("missing override should fall back, got %q", locate)
	}
}
