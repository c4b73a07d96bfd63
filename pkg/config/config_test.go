package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ravi-parthasarathy/artiffex/pkg/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(config.Default(), cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "artiffex.yaml", `
text_model: anthropic:claude-sonnet-4-5
image_model: openai:dall-e-3
aspect_ratio: "16:9"
log_format: json
listen: ":9000"
`)
	t.Setenv("ARTIFFEX_LISTEN", ":9100")
	t.Setenv("ARTIFFEX_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := config.Default()
	want.TextModel = "anthropic:claude-sonnet-4-5"
	want.AspectRatio = "16:9"
	want.LogFormat = "json"
	want.LogLevel = "debug"
	want.Listen = ":9100"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := config.Load(writeFile(t, "empty.yaml", ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TextModel != config.Default().TextModel {
		t.Errorf("text model = %q", cfg.TextModel)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad model", "text_model: gemini\n", `text_model "gemini"`},
		{"bad aspect", "aspect_ratio: \"2:1\"\n", `aspect_ratio "2:1"`},
		{"bad level", "log_level: loud\n", `log_level "loud"`},
		{"bad yaml", "listen: [\n", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, "c.yaml", tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := config.NewLogger("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "node", "n1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info logged at warn level: %q", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"node":"n1"`) {
		t.Errorf("json output = %q", out)
	}
}
