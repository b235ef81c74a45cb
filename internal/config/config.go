// Copyright Contributors to the Orchestrator project

// Package config loads and validates the operator's mounted configuration document.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"
)

// missingImageSentinel is the value image coordinates must never equal at boot; its presence
// means a deployment manifest forgot to substitute real values.
const missingImageSentinel = "MISSING_IMAGE_CONFIG"

// DefaultConfigPath is used when Load is given an empty path; it is also the --config flag's
// default.
const DefaultConfigPath = "/etc/orchestrator/config.yaml"

// Config is the root of the mounted configuration document.
type Config struct {
	Job         JobConfig         `json:"job" yaml:"job"`
	Agent       AgentConfig       `json:"agent" validate:"required" yaml:"agent"`
	Secrets     SecretsConfig     `json:"secrets" validate:"required" yaml:"secrets"`
	Permissions PermissionsConfig `json:"permissions" yaml:"permissions"`
	Telemetry   TelemetryConfig   `json:"telemetry" yaml:"telemetry"`
	Storage     StorageConfig     `json:"storage" yaml:"storage"`
	Cleanup     CleanupConfig     `json:"cleanup" yaml:"cleanup"`
}

// JobConfig controls the owned batch Job.
type JobConfig struct {
	// ActiveDeadlineSeconds bounds a run's wall-clock time. Defaults to 7200.
	ActiveDeadlineSeconds int64 `json:"activeDeadlineSeconds" yaml:"activeDeadlineSeconds"`
}

// AgentConfig describes the agent container image.
type AgentConfig struct {
	Image             ImageConfig `json:"image" validate:"required" yaml:"image"`
	ImagePullSecrets  []string    `json:"imagePullSecrets,omitempty" yaml:"imagePullSecrets,omitempty"`
}

// ImageConfig is the agent's container image coordinates.
type ImageConfig struct {
	Repository string `json:"repository" validate:"required" yaml:"repository"`
	Tag        string `json:"tag" validate:"required" yaml:"tag"`
}

// SecretsConfig names the secret holding the agent's API key.
type SecretsConfig struct {
	APIKeySecretName string `json:"apiKeySecretName" validate:"required" yaml:"apiKeySecretName"`
	APIKeySecretKey  string `json:"apiKeySecretKey" validate:"required" yaml:"apiKeySecretKey"`
}

// PermissionsConfig carries the agent's tool-permission allow/deny lists.
type PermissionsConfig struct {
	AgentToolsOverride bool     `json:"agentToolsOverride" yaml:"agentToolsOverride"`
	Allow              []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	Deny               []string `json:"deny,omitempty" yaml:"deny,omitempty"`
}

// TelemetryConfig carries endpoints projected into the agent container's environment. The
// operator process itself does not instrument against these.
type TelemetryConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	OTLPEndpoint  string `json:"otlpEndpoint,omitempty" yaml:"otlpEndpoint,omitempty"`
	OTLPProtocol  string `json:"otlpProtocol,omitempty" yaml:"otlpProtocol,omitempty"`
	LogsEndpoint  string `json:"logsEndpoint,omitempty" yaml:"logsEndpoint,omitempty"`
	LogsProtocol  string `json:"logsProtocol,omitempty" yaml:"logsProtocol,omitempty"`
}

// StorageConfig controls the code-run workspace PVC.
type StorageConfig struct {
	StorageClassName string `json:"storageClassName,omitempty" yaml:"storageClassName,omitempty"`
	WorkspaceSize    string `json:"workspaceSize" yaml:"workspaceSize"`
}

// CleanupConfig controls the garbage collector's delayed Job/ConfigMap cleanup.
type CleanupConfig struct {
	Enabled                 bool `json:"enabled" yaml:"enabled"`
	CompletedJobDelayMinutes int  `json:"completedJobDelayMinutes" yaml:"completedJobDelayMinutes"`
	FailedJobDelayMinutes    int  `json:"failedJobDelayMinutes" yaml:"failedJobDelayMinutes"`
	DeleteConfigMap          bool `json:"deleteConfigMap" yaml:"deleteConfigMap"`
}

func defaults() Config {
	return Config{
		Job: JobConfig{ActiveDeadlineSeconds: 7200},
		Storage: StorageConfig{
			WorkspaceSize: "10Gi",
		},
		Cleanup: CleanupConfig{
			Enabled:                  true,
			CompletedJobDelayMinutes: 5,
			FailedJobDelayMinutes:    60,
			DeleteConfigMap:          true,
		},
	}
}

// Load reads the configuration document at path, applies defaults and environment overrides,
// and validates it. A non-nil error here is meant to be fatal: the caller should log it and
// exit rather than run with invalid defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("LOGS_ENDPOINT"); v != "" {
		cfg.Telemetry.LogsEndpoint = v
	}
	if v := os.Getenv("LOGS_PROTOCOL"); v != "" {
		cfg.Telemetry.LogsProtocol = v
	}
}

var validate = validator.New()

// Validate checks required-field presence via struct tags and the cross-field sentinel rule
// that a struct tag cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Agent.Image.Repository == missingImageSentinel || c.Agent.Image.Tag == missingImageSentinel {
		return fmt.Errorf("invalid configuration: agent.image is set to the placeholder value %q", missingImageSentinel)
	}
	return nil
}

// ActiveDeadlineSeconds returns the configured job deadline, defaulting to 7200.
func (c *Config) ActiveDeadlineSeconds() int64 {
	if c.Job.ActiveDeadlineSeconds <= 0 {
		return 7200
	}
	return c.Job.ActiveDeadlineSeconds
}

// WorkspaceSize returns the configured workspace PVC size, defaulting to "10Gi".
func (c *Config) WorkspaceSize() string {
	if c.Storage.WorkspaceSize == "" {
		return "10Gi"
	}
	return c.Storage.WorkspaceSize
}
