// Copyright Contributors to the Orchestrator project

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
agent:
  image:
    repository: registry.example.com/agent
    tag: v1.0.0
secrets:
  apiKeySecretName: anthropic-api-key
  apiKeySecretKey: api-key
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ActiveDeadlineSeconds() != 7200 {
		t.Errorf("ActiveDeadlineSeconds() = %d, want 7200", cfg.ActiveDeadlineSeconds())
	}
	if cfg.WorkspaceSize() != "10Gi" {
		t.Errorf("WorkspaceSize() = %q, want 10Gi", cfg.WorkspaceSize())
	}
	if !cfg.Cleanup.Enabled {
		t.Errorf("Cleanup.Enabled = false, want true by default")
	}
}

func TestLoadRejectsMissingImageSentinel(t *testing.T) {
	path := writeConfig(t, `
agent:
  image:
    repository: MISSING_IMAGE_CONFIG
    tag: MISSING_IMAGE_CONFIG
secrets:
  apiKeySecretName: anthropic-api-key
  apiKeySecretKey: api-key
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load did not reject the MISSING_IMAGE_CONFIG sentinel")
	}
}

func TestLoadRejectsMissingRequiredField(t *testing.T) {
	path := writeConfig(t, `
agent:
  image:
    repository: registry.example.com/agent
    tag: v1.0.0
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load did not reject a config missing secrets.apiKeySecretName")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
agent:
  image:
    repository: registry.example.com/agent
    tag: v1.0.0
secrets:
  apiKeySecretName: anthropic-api-key
  apiKeySecretKey: api-key
telemetry:
  otlpEndpoint: http://default:4317
`)

	t.Setenv("OTLP_ENDPOINT", "http://override:4317")
	t.Setenv("LOGS_ENDPOINT", "http://logs:4318")
	t.Setenv("LOGS_PROTOCOL", "http")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Telemetry.OTLPEndpoint != "http://override:4317" {
		t.Errorf("Telemetry.OTLPEndpoint = %q, want override value", cfg.Telemetry.OTLPEndpoint)
	}
	if cfg.Telemetry.LogsEndpoint != "http://logs:4318" {
		t.Errorf("Telemetry.LogsEndpoint = %q, want override value", cfg.Telemetry.LogsEndpoint)
	}
	if cfg.Telemetry.LogsProtocol != "http" {
		t.Errorf("Telemetry.LogsProtocol = %q, want http", cfg.Telemetry.LogsProtocol)
	}
}
