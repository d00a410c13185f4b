package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalSink_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	sink := NewLocalSink(dir)

	path, err := sink.Save(context.Background(), "exec_step_1_1700000000.png", []byte("png"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if path != filepath.Join(dir, "exec_step_1_1700000000.png") {
		t.Errorf("unexpected path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "png" {
		t.Errorf("unexpected contents %q (%v)", data, err)
	}
}

func TestLocalSink_StaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	sink := NewLocalSink(dir)

	path, err := sink.Save(context.Background(), "../../escape.png", []byte("x"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("artifact escaped the sink: %s", path)
	}

	if _, err := sink.Save(context.Background(), "  ", nil); err == nil {
		t.Error("expected error for blank name")
	}
}

func TestMinioConfig_Validate(t *testing.T) {
	valid := MinioConfig{Endpoint: "localhost:9000", AccessKey: "ak", SecretKey: "sk", Bucket: "shots"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name string
		mod  func(*MinioConfig)
	}{
		{"no endpoint", func(c *MinioConfig) { c.Endpoint = "" }},
		{"scheme", func(c *MinioConfig) { c.Endpoint = "http://localhost:9000" }},
		{"no access key", func(c *MinioConfig) { c.AccessKey = " " }},
		{"no secret", func(c *MinioConfig) { c.SecretKey = "" }},
		{"no bucket", func(c *MinioConfig) { c.Bucket = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mod(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestObjectKey(t *testing.T) {
	if got := objectKey("", "a.png"); got != "a.png" {
		t.Errorf("got %s", got)
	}
	if got := objectKey("/runs/", "a.png"); got != "runs/a.png" {
		t.Errorf("got %s", got)
	}
	if contentType("a.PNG") != "image/png" {
		t.Error("expected image/png")
	}
}
