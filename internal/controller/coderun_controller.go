// Copyright Contributors to the Orchestrator project

package controller

import (
	"context"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	agentsv1 "github.com/agents-platform/orchestrator/api/v1"
	runbuilder "github.com/agents-platform/orchestrator/internal/builder"
	"github.com/agents-platform/orchestrator/internal/template"
)

// CodeRunReconciler reconciles a CodeRun.
type CodeRunReconciler struct {
	client.Client
	Scheme *runtime.Scheme
	Deps   Deps
}

// +kubebuilder:rbac:groups=agents.platform,resources=coderuns,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=agents.platform,resources=coderuns/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=agents.platform,resources=coderuns/finalizers,verbs=update
// +kubebuilder:rbac:groups=batch,resources=jobs,verbs=get;list;watch;create;delete
// +kubebuilder:rbac:groups="",resources=configmaps,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups="",resources=persistentvolumeclaims,verbs=get;list;watch;create

// Reconcile drives a CodeRun through the shared run lifecycle.
func (r *CodeRunReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	run := &agentsv1.CodeRun{}
	if err := r.Get(ctx, req.NamespacedName, run); err != nil {
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}

	adapter := &codeRunAdapter{run: run, deps: r.Deps}
	return RunReconcile(ctx, r.Deps, run, run, adapter, agentsv1.CodeRunFinalizer)
}

// SetupWithManager registers this controller, watching CodeRun and its owned Jobs.
func (r *CodeRunReconciler) SetupWithManager(mgr ctrl.Manager) error {
	r.Deps.Client = mgr.GetClient()
	return ctrl.NewControllerManagedBy(mgr).
		For(&agentsv1.CodeRun{}).
		Owns(&batchv1.Job{}).
		Complete(r)
}

// codeRunAdapter supplies the CodeRun-specific pieces of the shared run reconcile procedure.
type codeRunAdapter struct {
	run  *agentsv1.CodeRun
	deps Deps
}

func (a *codeRunAdapter) JobName() string {
	return runbuilder.CodeJobName(a.run.Namespace, a.run.Name, string(a.run.UID), a.run.Spec.TaskId, a.run.EffectiveContextVersion())
}

func (a *codeRunAdapter) ConfigMapName() string {
	return runbuilder.CodeConfigMapName(a.run.Namespace, a.run.Name, string(a.run.UID), a.run.Spec.TaskId, a.run.EffectiveContextVersion())
}

func (a *codeRunAdapter) Labels() map[string]string {
	taskID := a.run.Spec.TaskId
	contextVersion := a.run.EffectiveContextVersion()
	return runbuilder.Labels("code", "code", string(a.run.UID), &taskID, a.run.Spec.Service, a.run.Spec.GithubUser, a.run.Spec.GithubApp, &contextVersion)
}

func (a *codeRunAdapter) Owner() runbuilder.OwnerRef {
	return runbuilder.OwnerRef{
		APIVersion: agentsv1.GroupVersion.String(),
		Kind:       "CodeRun",
		Name:       a.run.Name,
		UID:        a.run.UID,
	}
}

func (a *codeRunAdapter) TemplateKind() template.Kind { return template.KindCode }

func (a *codeRunAdapter) TemplateContext() template.Context {
	return template.Context{
		Name:             a.run.Name,
		Namespace:        a.run.Namespace,
		Model:            a.run.Spec.Model,
		RepositoryUrl:    a.run.Spec.RepositoryUrl,
		WorkingDirectory: a.run.EffectiveWorkingDirectory(),
		ContinueSession:  a.run.EffectiveContinueSession(),
		OverwriteMemory:  a.run.Spec.OverwriteMemory,
		TaskId:           a.run.Spec.TaskId,
		Service:          a.run.Spec.Service,
		ContextVersion:   a.run.EffectiveContextVersion(),
		DocsBranch:       a.run.EffectiveDocsBranch(),
		Env:              a.run.Spec.Env,
	}
}

func (a *codeRunAdapter) AuthRequired() bool { return true }

func (a *codeRunAdapter) Principal() agentsv1.AuthPrincipal {
	return a.run.GetAuthPrincipal()
}

// ExtraEnv projects the spec's free-form env and per-key secret references into the container.
func (a *codeRunAdapter) ExtraEnv() []corev1.EnvVar {
	var vars []corev1.EnvVar
	for name, value := range a.run.Spec.Env {
		vars = append(vars, corev1.EnvVar{Name: name, Value: value})
	}
	for _, ref := range a.run.Spec.EnvFromSecrets {
		vars = append(vars, runbuilder.APIKeyEnvVar(ref.Name, ref.SecretName, ref.SecretKey))
	}
	return vars
}

// EnsureWorkspace ensures the per-service workspace PVC exists, creating it on first use, then
// returns a volume source bound to it. The PVC is shared across every code run of the service
// and is never deleted by a run's finalizer.
func (a *codeRunAdapter) EnsureWorkspace(ctx context.Context) (corev1.VolumeSource, error) {
	name := runbuilder.WorkspacePVCName(a.run.Spec.Service)

	existing := &corev1.PersistentVolumeClaim{}
	err := a.deps.Get(ctx, types.NamespacedName{Name: name, Namespace: a.run.Namespace}, existing)
	switch {
	case err == nil:
		return runbuilder.PersistentWorkspace(name), nil
	case errors.IsNotFound(err):
		pvc, buildErr := runbuilder.BuildWorkspacePVC(name, a.run.Namespace, a.run.Spec.Service, a.deps.Config.Storage.StorageClassName, a.deps.Config.WorkspaceSize())
		if buildErr != nil {
			return corev1.VolumeSource{}, buildErr
		}
		if createErr := a.deps.Create(ctx, pvc); createErr != nil && !errors.IsAlreadyExists(createErr) {
			return corev1.VolumeSource{}, fmt.Errorf("creating workspace pvc %s: %w", name, createErr)
		}
		return runbuilder.PersistentWorkspace(name), nil
	default:
		return corev1.VolumeSource{}, fmt.Errorf("getting workspace pvc %s: %w", name, err)
	}
}
