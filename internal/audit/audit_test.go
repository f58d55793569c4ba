package audit

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
)

// The audit line records that a key is set, never what it is set to.
func TestLogCommandStart_NeverLogsSecretValues(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-super-secret-value")
	t.Setenv("MCQA_API_KEY", "server-token-value")
	t.Setenv("MODEL_PROVIDER", "openai")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	LogCommandStart(log, "serve", "/tmp/config.yaml")

	out := buf.String()
	if out == "" {
		t.Fatal("no audit log emitted")
	}
	for _, secret := range []string{"sk-super-secret-value", "server-token-value"} {
		if strings.Contains(out, secret) {
			t.Errorf("audit log leaked a secret value: %s", out)
		}
	}
	if !strings.Contains(out, `"OPENAI_API_KEY":"set"`) {
		t.Errorf("audit log should record key presence, got: %s", out)
	}
	if !strings.Contains(out, `"MODEL_PROVIDER":"openai"`) {
		t.Errorf("audit log should record non-secret values, got: %s", out)
	}
	if !strings.Contains(out, `"command":"serve"`) {
		t.Errorf("audit log should record the command name, got: %s", out)
	}
}

func TestSanitiseKey_Secret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("OPENAI_API_KEY", "sk-abc123"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := SanitiseKey("OPENAI_API_KEY", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseKey_ServerToken(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("MCQA_API_KEY", "hunter2"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
}

func TestSanitiseKey_NonSecret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("MODEL_PROVIDER", "azure"); got != "azure" {
		t.Errorf("expected 'azure', got %q", got)
	}
	if got := SanitiseKey("MODEL_PROVIDER", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestPresence(t *testing.T) {
	t.Parallel()
	if got := presence("something"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := presence(""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.mcqa/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.mcqa/config.yaml" {
			t.Errorf("expected '~/.mcqa/config.yaml', got %q", got)
		}
	}
}
