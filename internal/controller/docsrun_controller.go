// Copyright Contributors to the Orchestrator project

package controller

import (
	"context"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	agentsv1 "github.com/agents-platform/orchestrator/api/v1"
	runbuilder "github.com/agents-platform/orchestrator/internal/builder"
	"github.com/agents-platform/orchestrator/internal/template"
)

// DocsRunReconciler reconciles a DocsRun.
type DocsRunReconciler struct {
	client.Client
	Scheme *runtime.Scheme
	Deps   Deps
}

// +kubebuilder:rbac:groups=agents.platform,resources=docsruns,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=agents.platform,resources=docsruns/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=agents.platform,resources=docsruns/finalizers,verbs=update
// +kubebuilder:rbac:groups=batch,resources=jobs,verbs=get;list;watch;create;delete
// +kubebuilder:rbac:groups="",resources=configmaps,verbs=get;list;watch;create;update;patch;delete

// Reconcile drives a DocsRun through the shared run lifecycle.
func (r *DocsRunReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	run := &agentsv1.DocsRun{}
	if err := r.Get(ctx, req.NamespacedName, run); err != nil {
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}

	adapter := &docsRunAdapter{run: run}
	return RunReconcile(ctx, r.Deps, run, run, adapter, agentsv1.DocsRunFinalizer)
}

// SetupWithManager registers this controller, watching DocsRun and its owned Jobs.
func (r *DocsRunReconciler) SetupWithManager(mgr ctrl.Manager) error {
	r.Deps.Client = mgr.GetClient()
	return ctrl.NewControllerManagedBy(mgr).
		For(&agentsv1.DocsRun{}).
		Owns(&batchv1.Job{}).
		Complete(r)
}

// docsRunAdapter supplies the DocsRun-specific pieces of the shared run reconcile procedure.
type docsRunAdapter struct {
	run *agentsv1.DocsRun
}

func (a *docsRunAdapter) JobName() string {
	return runbuilder.DocsJobName(a.run.Namespace, a.run.Name, string(a.run.UID))
}

func (a *docsRunAdapter) ConfigMapName() string {
	return runbuilder.DocsConfigMapName(a.run.Namespace, a.run.Name, string(a.run.UID))
}

func (a *docsRunAdapter) Labels() map[string]string {
	return runbuilder.Labels("docs", "docs", string(a.run.UID), nil, "", a.run.Spec.GithubUser, a.run.Spec.GithubApp, nil)
}

func (a *docsRunAdapter) Owner() runbuilder.OwnerRef {
	return runbuilder.OwnerRef{
		APIVersion: agentsv1.GroupVersion.String(),
		Kind:       "DocsRun",
		Name:       a.run.Name,
		UID:        a.run.UID,
	}
}

func (a *docsRunAdapter) TemplateKind() template.Kind { return template.KindDocs }

func (a *docsRunAdapter) TemplateContext() template.Context {
	return template.Context{
		Name:             a.run.Name,
		Namespace:        a.run.Namespace,
		Model:            a.run.Spec.Model,
		RepositoryUrl:    a.run.Spec.RepositoryUrl,
		WorkingDirectory: a.run.Spec.WorkingDirectory,
		SourceBranch:     a.run.Spec.SourceBranch,
	}
}

func (a *docsRunAdapter) AuthRequired() bool { return false }

func (a *docsRunAdapter) Principal() agentsv1.AuthPrincipal {
	return a.run.GetAuthPrincipal()
}

func (a *docsRunAdapter) ExtraEnv() []corev1.EnvVar { return nil }

// EnsureWorkspace returns an ephemeral emptyDir: a documentation run never needs a persistent
// workspace shared across attempts.
func (a *docsRunAdapter) EnsureWorkspace(ctx context.Context) (corev1.VolumeSource, error) {
	return runbuilder.EphemeralWorkspace(), nil
}
