// Copyright Contributors to the Orchestrator project

package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// CodeRunSpec defines the desired task-implementation run.
type CodeRunSpec struct {
	// TaskId identifies the task being implemented. It is part of the owned Job's deterministic
	// name, so distinct task attempts never collide on names.
	// +required
	TaskId uint32 `json:"taskId"`

	// Service names the workspace identity. Code runs for the same service share a workspace PVC.
	// +required
	Service string `json:"service"`

	// RepositoryUrl is the target repository the agent modifies.
	// +required
	RepositoryUrl string `json:"repositoryUrl"`

	// DocsRepositoryUrl is the documentation repository consulted for context.
	// +required
	DocsRepositoryUrl string `json:"docsRepositoryUrl"`

	// DocsProjectDirectory is an optional sub-directory within the documentation repository.
	// +optional
	DocsProjectDirectory string `json:"docsProjectDirectory,omitempty"`

	// WorkingDirectory is an optional working sub-directory within the target repository.
	// Defaults to Service when unset.
	// +optional
	WorkingDirectory string `json:"workingDirectory,omitempty"`

	// Model is the model identifier passed to the agent.
	// +required
	Model string `json:"model"`

	// GithubUser is the user (SSH) identity to use. Application identity, if also set, wins.
	// +optional
	GithubUser string `json:"githubUser,omitempty"`

	// GithubApp is the application identity to use. Preferred over GithubUser when both are set.
	// An application identity is mandatory for code runs.
	// +optional
	GithubApp string `json:"githubApp,omitempty"`

	// ContextVersion distinguishes retry generations of the same logical task. Bumping it produces
	// freshly named artifacts, which is how this system expresses "retry" without mutating history.
	// +kubebuilder:default=1
	// +optional
	ContextVersion int32 `json:"contextVersion,omitempty"`

	// DocsBranch is the branch of the documentation repository to read.
	// +kubebuilder:default="main"
	// +optional
	DocsBranch string `json:"docsBranch,omitempty"`

	// ContinueSession carries forward prior session state. It is also forced true whenever
	// RetryCount (as observed in status) is greater than zero.
	// +optional
	ContinueSession bool `json:"continueSession,omitempty"`

	// OverwriteMemory instructs the agent to discard its persisted memory file before starting.
	// +optional
	OverwriteMemory bool `json:"overwriteMemory,omitempty"`

	// Env is a free-form set of environment variables projected verbatim into the agent container.
	// +optional
	Env map[string]string `json:"env,omitempty"`

	// EnvFromSecrets projects individual secret keys into the agent container's environment.
	// +optional
	EnvFromSecrets []EnvFromSecret `json:"envFromSecrets,omitempty"`
}

// CodeRunStatus is the observed state of a CodeRun.
type CodeRunStatus struct {
	RunStatus `json:",inline"`

	// RetryCount counts prior attempts recorded against this resource.
	// +optional
	RetryCount int32 `json:"retryCount,omitempty"`

	// SessionId is the agent's session identifier, carried across ContinueSession runs.
	// +optional
	SessionId string `json:"sessionId,omitempty"`

	// ContextVersion is the spec value that produced the current artifacts. The reconciler
	// does not write this field; the artifact names and the "context-version" label carry it.
	// +optional
	ContextVersion int32 `json:"contextVersion,omitempty"`

	// PromptModification is free-form operator-supplied text about the prompt. It is kept in
	// status only: the template context does not include it, so rendered files do not contain it.
	// +optional
	PromptModification string `json:"promptModification,omitempty"`

	// PromptMode records which prompt variant was rendered for this run.
	// +optional
	PromptMode string `json:"promptMode,omitempty"`
}

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope="Namespaced",shortName=cr
// +kubebuilder:printcolumn:JSONPath=`.status.phase`,name="Phase",type=string
// +kubebuilder:printcolumn:JSONPath=`.spec.taskId`,name="Task",type=integer
// +kubebuilder:printcolumn:JSONPath=`.spec.service`,name="Service",type=string
// +kubebuilder:printcolumn:JSONPath=`.spec.model`,name="Model",type=string
// +kubebuilder:printcolumn:JSONPath=`.metadata.creationTimestamp`,name="Age",type=date

// CodeRun is a namespaced intent to implement a task against a target repository by running
// an AI coding agent as a batch Job.
type CodeRun struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	// Spec defines the desired run.
	Spec CodeRunSpec `json:"spec"`

	// Status represents the current status of the run.
	// +optional
	Status CodeRunStatus `json:"status,omitempty"`
}

// GetRunStatus returns a pointer to the embedded run status so shared reconcile logic can patch it.
func (r *CodeRun) GetRunStatus() *RunStatus {
	return &r.Status.RunStatus
}

// GetAuthPrincipal returns the authentication identity configured for this run.
func (r *CodeRun) GetAuthPrincipal() AuthPrincipal {
	return AuthPrincipal{GithubApp: r.Spec.GithubApp, GithubUser: r.Spec.GithubUser}
}

// GetModel returns the model identifier configured for this run.
func (r *CodeRun) GetModel() string {
	return r.Spec.Model
}

// EffectiveWorkingDirectory returns the spec's working directory, falling back to Service.
func (r *CodeRun) EffectiveWorkingDirectory() string {
	if r.Spec.WorkingDirectory != "" {
		return r.Spec.WorkingDirectory
	}
	return r.Spec.Service
}

// EffectiveContinueSession returns true when the spec requests it or a prior attempt was recorded.
func (r *CodeRun) EffectiveContinueSession() bool {
	return r.Spec.ContinueSession || r.Status.RetryCount > 0
}

// EffectiveContextVersion returns the configured context version, defaulting to 1.
func (r *CodeRun) EffectiveContextVersion() int32 {
	if r.Spec.ContextVersion <= 0 {
		return 1
	}
	return r.Spec.ContextVersion
}

// EffectiveDocsBranch returns the configured docs branch, defaulting to "main".
func (r *CodeRun) EffectiveDocsBranch() string {
	if r.Spec.DocsBranch == "" {
		return "main"
	}
	return r.Spec.DocsBranch
}

// +kubebuilder:object:root=true
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object

// CodeRunList contains a list of CodeRun.
type CodeRunList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []CodeRun `json:"items"`
}
