// Copyright Contributors to the Orchestrator project

package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// RunPhase is the lifecycle phase of a DocsRun or CodeRun.
// +kubebuilder:validation:Enum=Running;Succeeded;Failed
type RunPhase string

const (
	// RunPhaseRunning means the owned Job has been created and has not yet reached a terminal state.
	RunPhaseRunning RunPhase = "Running"
	// RunPhaseSucceeded means the owned Job completed successfully.
	RunPhaseSucceeded RunPhase = "Succeeded"
	// RunPhaseFailed means the owned Job failed. This is terminal; the system performs no retry.
	RunPhaseFailed RunPhase = "Failed"
)

const (
	// ConditionTypeReady reflects whether the run is progressing normally.
	ConditionTypeReady = "Ready"

	// ReasonConfigurationError is used when a run cannot proceed due to invalid or missing configuration
	// (authentication principal, template rendering, agent image configuration).
	ReasonConfigurationError = "ConfigurationError"
	// ReasonJobCreated is used once the owned Job has been created.
	ReasonJobCreated = "JobCreated"
	// ReasonJobRunning is used while the owned Job has not reached a terminal state.
	ReasonJobRunning = "JobRunning"
	// ReasonJobSucceeded is used when the owned Job completed successfully.
	ReasonJobSucceeded = "JobSucceeded"
	// ReasonJobFailed is used when the owned Job failed.
	ReasonJobFailed = "JobFailed"
)

const (
	// DocsRunFinalizer is added to a DocsRun so the controller can clean up owned objects before deletion.
	DocsRunFinalizer = "docsruns.orchestrator.io/finalizer"
	// CodeRunFinalizer is added to a CodeRun so the controller can clean up owned objects before deletion.
	CodeRunFinalizer = "coderuns.orchestrator.io/finalizer"
)

// EnvFromSecret projects a single key of a Secret into the agent container's environment.
type EnvFromSecret struct {
	// Name is the environment variable name inside the container.
	// +required
	Name string `json:"name"`

	// SecretName is the name of the Secret to read from.
	// +required
	SecretName string `json:"secretName"`

	// SecretKey is the key within the Secret.
	// +required
	SecretKey string `json:"secretKey"`
}

// RunStatus is the status shape shared by DocsRun and CodeRun.
type RunStatus struct {
	// Phase is the current lifecycle phase.
	// +optional
	Phase RunPhase `json:"phase,omitempty"`

	// Message is a human-readable explanation of the current phase.
	// +optional
	Message string `json:"message,omitempty"`

	// LastUpdate is the time the status was last patched.
	// +optional
	LastUpdate *metav1.Time `json:"lastUpdate,omitempty"`

	// JobName is the name of the owned Job, once created.
	// +optional
	JobName string `json:"jobName,omitempty"`

	// ConfigmapName is the name of the owned ConfigMap, once created.
	// +optional
	ConfigmapName string `json:"configmapName,omitempty"`

	// PullRequestUrl is the pull request produced by the run, if any.
	// +optional
	PullRequestUrl string `json:"pullRequestUrl,omitempty"`

	// Conditions holds the standard Kubernetes condition set for this run.
	// +optional
	// +listType=map
	// +listMapKey=type
	Conditions []metav1.Condition `json:"conditions,omitempty"`

	// WorkCompleted is the terminal-success sentinel. It is write-once: once true it must never
	// revert to false, and it authoritatively marks the run as done even if the owned Job has since
	// been reaped by its TTL.
	// +optional
	WorkCompleted bool `json:"workCompleted,omitempty"`
}

// RunObject is implemented by both DocsRun and CodeRun so the reconciler's shared decision
// procedure can operate on either kind without a type switch.
// +kubebuilder:object:generate=false
type RunObject interface {
	GetRunStatus() *RunStatus
	GetAuthPrincipal() AuthPrincipal
	GetModel() string
}

// AuthPrincipal is the resolved authentication identity for a run: either a named GitHub
// application or a named GitHub user (SSH), never both in effect at once.
type AuthPrincipal struct {
	// GithubApp is the name of the configured GitHub App identity, if any.
	GithubApp string
	// GithubUser is the name of the configured GitHub user (SSH) identity, if any.
	GithubUser string
}

// HasApp reports whether an application identity is in effect.
func (p AuthPrincipal) HasApp() bool {
	return p.GithubApp != ""
}

// HasUser reports whether a user (SSH) identity is in effect.
func (p AuthPrincipal) HasUser() bool {
	return p.GithubUser != ""
}

// Empty reports whether no authentication principal was supplied.
func (p AuthPrincipal) Empty() bool {
	return !p.HasApp() && !p.HasUser()
}
