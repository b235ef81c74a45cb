// Copyright Contributors to the Orchestrator project

package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// DocsRunSpec defines the desired documentation-generation run.
type DocsRunSpec struct {
	// RepositoryUrl is the source repository to document.
	// +required
	RepositoryUrl string `json:"repositoryUrl"`

	// WorkingDirectory is the directory within the repository the agent operates from.
	// +required
	WorkingDirectory string `json:"workingDirectory"`

	// SourceBranch is the branch to check out.
	// +required
	SourceBranch string `json:"sourceBranch"`

	// Model is the model identifier passed to the agent.
	// +optional
	Model string `json:"model,omitempty"`

	// GithubUser is the user (SSH) identity to use. Application identity, if also set, wins.
	// +optional
	GithubUser string `json:"githubUser,omitempty"`

	// GithubApp is the application identity to use. Preferred over GithubUser when both are set.
	// +optional
	GithubApp string `json:"githubApp,omitempty"`
}

// DocsRunStatus is the observed state of a DocsRun.
type DocsRunStatus struct {
	RunStatus `json:",inline"`
}

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope="Namespaced",shortName=dr
// +kubebuilder:printcolumn:JSONPath=`.status.phase`,name="Phase",type=string
// +kubebuilder:printcolumn:JSONPath=`.metadata.creationTimestamp`,name="Age",type=date

// DocsRun is a namespaced intent to generate documentation for a repository by running an
// AI coding agent as a batch Job.
type DocsRun struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	// Spec defines the desired run.
	Spec DocsRunSpec `json:"spec"`

	// Status represents the current status of the run.
	// +optional
	Status DocsRunStatus `json:"status,omitempty"`
}

// GetRunStatus returns a pointer to the embedded run status so shared reconcile logic can patch it.
func (r *DocsRun) GetRunStatus() *RunStatus {
	return &r.Status.RunStatus
}

// GetAuthPrincipal returns the authentication identity configured for this run.
func (r *DocsRun) GetAuthPrincipal() AuthPrincipal {
	return AuthPrincipal{GithubApp: r.Spec.GithubApp, GithubUser: r.Spec.GithubUser}
}

// GetModel returns the model identifier configured for this run.
func (r *DocsRun) GetModel() string {
	return r.Spec.Model
}

// +kubebuilder:object:root=true
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object

// DocsRunList contains a list of DocsRun.
type DocsRunList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []DocsRun `json:"items"`
}
