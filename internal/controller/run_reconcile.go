// Copyright Contributors to the Orchestrator project

package controller

import (
	"context"
	"fmt"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/log"

	agentsv1 "github.com/agents-platform/orchestrator/api/v1"
	"github.com/agents-platform/orchestrator/internal/builder"
	"github.com/agents-platform/orchestrator/internal/config"
	"github.com/agents-platform/orchestrator/internal/gc"
	"github.com/agents-platform/orchestrator/internal/status"
	"github.com/agents-platform/orchestrator/internal/template"
)

// runningRequeueInterval is how soon a reconcile is retried while the owned Job is still running.
// A Job carries no watch-worthy status change between events other than its own termination, so
// polling on this cadence is cheaper than a field-index watch on every Job update.
const runningRequeueInterval = 30 * time.Second

// Adapter supplies everything the shared decision procedure needs that differs between DocsRun
// and CodeRun: deterministic names, the rendered template context, the workspace volume source,
// and whether an application identity is mandatory.
type Adapter interface {
	JobName() string
	ConfigMapName() string
	Labels() map[string]string
	Owner() builder.OwnerRef
	TemplateKind() template.Kind
	TemplateContext() template.Context
	AuthRequired() bool
	Principal() agentsv1.AuthPrincipal
	ExtraEnv() []corev1.EnvVar

	// EnsureWorkspace returns the workspace volume source to mount into the Job, creating any
	// backing storage (a PVC, for code runs) first. DocsRun returns an ephemeral emptyDir and
	// never touches the cluster.
	EnsureWorkspace(ctx context.Context) (corev1.VolumeSource, error)
}

// Deps are the shared collaborators every run reconciler needs.
type Deps struct {
	client.Client
	Status       status.Writer
	Config       *config.Config
	TemplateDirs map[template.Kind]string

	// Catalog is the docs tool catalog embedded in a rendered prompt.md. Empty when no catalog
	// document was mounted; the rendered prompt then reports a tool count of zero.
	Catalog []template.Tool
}

// RunReconcile implements the run lifecycle's decision procedure once: finalizer lifecycle,
// status-first terminal short-circuits, Job-state classification, and the create-configmap,
// create-job, patch-owner, patch-status sequence for a fresh run. obj is the concrete CR
// (*DocsRun or *CodeRun); run is obj viewed through the shared RunObject interface; adapter
// supplies the kind-specific pieces; finalizerName is the finalizer this kind registers.
func RunReconcile(ctx context.Context, deps Deps, obj client.Object, run agentsv1.RunObject, adapter Adapter, finalizerName string) (ctrl.Result, error) {
	rs := run.GetRunStatus()

	// Step 1: deletion takes precedence over everything else.
	if !obj.GetDeletionTimestamp().IsZero() {
		return handleDeletion(ctx, deps, obj, finalizerName)
	}

	// Step 2: ensure the finalizer is present before any owned object is created.
	if !controllerutil.ContainsFinalizer(obj, finalizerName) {
		controllerutil.AddFinalizer(obj, finalizerName)
		if err := deps.Update(ctx, obj); err != nil {
			return ctrl.Result{}, fmt.Errorf("adding finalizer: %w", err)
		}
		return ctrl.Result{}, nil
	}

	// Step 3: workCompleted is the write-once terminal sentinel. Once true, the run is done
	// regardless of whether the owned Job still exists (it may have been TTL-reaped).
	if rs.WorkCompleted {
		return ctrl.Result{}, nil
	}

	// Step 4: a legacy Succeeded phase without workCompleted set is upgraded in place.
	if rs.Phase == agentsv1.RunPhaseSucceeded {
		return ctrl.Result{}, deps.Status.Apply(ctx, obj, rs, status.Patch{
			Phase: agentsv1.RunPhaseSucceeded, WorkCompleted: true,
			JobName: rs.JobName, ConfigmapName: rs.ConfigmapName,
			Conditions: readyCondition(obj, metav1.ConditionTrue, agentsv1.ReasonJobSucceeded, "run completed"),
		}, metav1.Now())
	}

	// Step 5: Failed is terminal; this system performs no automatic retry.
	if rs.Phase == agentsv1.RunPhaseFailed {
		return ctrl.Result{}, nil
	}

	// Step 6: look up the owned Job by its deterministic name and act on its observed state.
	jobName := adapter.JobName()
	job := &batchv1.Job{}
	err := deps.Get(ctx, types.NamespacedName{Name: jobName, Namespace: obj.GetNamespace()}, job)
	switch {
	case err == nil:
		return reactToJob(ctx, deps, obj, rs, job, jobName, adapter.ConfigMapName())
	case errors.IsNotFound(err):
		// fall through to creation below
	default:
		return ctrl.Result{}, fmt.Errorf("getting job %s: %w", jobName, err)
	}

	return createRun(ctx, deps, obj, rs, adapter, finalizerName)
}

// reactToJob classifies an existing owned Job and patches status accordingly.
func reactToJob(ctx context.Context, deps Deps, obj client.Object, rs *agentsv1.RunStatus, job *batchv1.Job, jobName, configmapName string) (ctrl.Result, error) {
	switch ClassifyJob(job) {
	case JobCompleted:
		return ctrl.Result{}, deps.Status.Apply(ctx, obj, rs, status.Patch{
			Phase: agentsv1.RunPhaseSucceeded, WorkCompleted: true,
			JobName: jobName, ConfigmapName: configmapName,
			Conditions: readyCondition(obj, metav1.ConditionTrue, agentsv1.ReasonJobSucceeded, "job completed"),
		}, metav1.Now())
	case JobFailed:
		return ctrl.Result{}, deps.Status.Apply(ctx, obj, rs, status.Patch{
			Phase: agentsv1.RunPhaseFailed, WorkCompleted: false,
			JobName: jobName, ConfigmapName: configmapName,
			Conditions: readyCondition(obj, metav1.ConditionFalse, agentsv1.ReasonJobFailed, JobFailureMessage(job)),
		}, metav1.Now())
	default: // JobRunning
		if err := deps.Status.Apply(ctx, obj, rs, status.Patch{
			Phase: agentsv1.RunPhaseRunning, WorkCompleted: false,
			JobName: jobName, ConfigmapName: configmapName,
			Conditions: readyCondition(obj, metav1.ConditionTrue, agentsv1.ReasonJobRunning, "job running"),
		}, metav1.Now()); err != nil {
			return ctrl.Result{}, err
		}
		return ctrl.Result{RequeueAfter: runningRequeueInterval}, nil
	}
}

// createRun performs the first-reconcile path: resolve auth, ensure workspace storage, render
// templates, upsert the ConfigMap, create the Job, then late-bind the ConfigMap's owner
// reference to the Job once it exists.
func createRun(ctx context.Context, deps Deps, obj client.Object, rs *agentsv1.RunStatus, adapter Adapter, finalizerName string) (ctrl.Result, error) {
	logger := log.FromContext(ctx)

	auth, err := builder.ResolveAuth(adapter.Principal(), adapter.AuthRequired())
	if err != nil {
		return ctrl.Result{}, deps.Status.Apply(ctx, obj, rs, status.Patch{
			Phase: agentsv1.RunPhaseFailed, WorkCompleted: false,
			Conditions: readyCondition(obj, metav1.ConditionFalse, agentsv1.ReasonConfigurationError, err.Error()),
		}, metav1.Now())
	}

	workspace, err := adapter.EnsureWorkspace(ctx)
	if err != nil {
		return ctrl.Result{}, fmt.Errorf("ensuring workspace: %w", err)
	}

	dir, ok := deps.TemplateDirs[adapter.TemplateKind()]
	if !ok {
		return ctrl.Result{}, fmt.Errorf("no template directory configured for kind %q", adapter.TemplateKind())
	}
	renderer, err := template.NewRenderer(adapter.TemplateKind(), dir)
	if err != nil {
		return ctrl.Result{}, deps.Status.Apply(ctx, obj, rs, status.Patch{
			Phase: agentsv1.RunPhaseFailed, WorkCompleted: false,
			Conditions: readyCondition(obj, metav1.ConditionFalse, agentsv1.ReasonConfigurationError, err.Error()),
		}, metav1.Now())
	}
	tmplCtx := adapter.TemplateContext()
	tmplCtx.RenderedAt = time.Now()
	if adapter.TemplateKind() == template.KindDocs {
		tmplCtx.Tools = deps.Catalog
	}
	data, err := renderer.Render(tmplCtx)
	if err != nil {
		return ctrl.Result{}, deps.Status.Apply(ctx, obj, rs, status.Patch{
			Phase: agentsv1.RunPhaseFailed, WorkCompleted: false,
			Conditions: readyCondition(obj, metav1.ConditionFalse, agentsv1.ReasonConfigurationError, err.Error()),
		}, metav1.Now())
	}

	configMapName := adapter.ConfigMapName()
	cm := builder.BuildConfigMap(configMapName, obj.GetNamespace(), adapter.Labels(), data)
	if err := upsertConfigMap(ctx, deps, cm); err != nil {
		return ctrl.Result{}, fmt.Errorf("upserting configmap %s: %w", configMapName, err)
	}

	envVars := append([]corev1.EnvVar{
		builder.APIKeyEnvVar("ANTHROPIC_API_KEY", deps.Config.Secrets.APIKeySecretName, deps.Config.Secrets.APIKeySecretKey),
	}, auth.EnvVars...)
	envVars = append(envVars, adapter.ExtraEnv()...)

	jobName := adapter.JobName()
	job := builder.BuildJob(builder.JobOptions{
		Name:                  jobName,
		Namespace:             obj.GetNamespace(),
		Labels:                adapter.Labels(),
		Owner:                 adapter.Owner(),
		ConfigMapName:         configMapName,
		Image:                 fmt.Sprintf("%s:%s", deps.Config.Agent.Image.Repository, deps.Config.Agent.Image.Tag),
		ImagePullSecrets:      deps.Config.Agent.ImagePullSecrets,
		EnvVars:               envVars,
		ExtraVolumes:          auth.Volumes,
		ExtraVolumeMounts:     auth.VolumeMounts,
		Workspace:             workspace,
		ActiveDeadlineSeconds: deps.Config.ActiveDeadlineSeconds(),
	})
	if err := deps.Create(ctx, job); err != nil {
		if !errors.IsAlreadyExists(err) {
			return ctrl.Result{}, fmt.Errorf("creating job %s: %w", jobName, err)
		}
		if err := deps.Get(ctx, types.NamespacedName{Name: jobName, Namespace: obj.GetNamespace()}, job); err != nil {
			return ctrl.Result{}, fmt.Errorf("fetching existing job %s: %w", jobName, err)
		}
	} else {
		logger.Info("created job", "job", jobName, "configmap", configMapName)
	}

	if err := patchConfigMapOwner(ctx, deps, cm, job); err != nil {
		return ctrl.Result{}, fmt.Errorf("patching configmap owner reference: %w", err)
	}

	if err := deps.Status.Apply(ctx, obj, rs, status.Patch{
		Phase: agentsv1.RunPhaseRunning, WorkCompleted: false,
		JobName: jobName, ConfigmapName: configMapName,
		Conditions: readyCondition(obj, metav1.ConditionTrue, agentsv1.ReasonJobCreated, "job created"),
	}, metav1.Now()); err != nil {
		return ctrl.Result{}, err
	}

	return ctrl.Result{RequeueAfter: runningRequeueInterval}, nil
}

// upsertConfigMap creates cm, or replaces its data in place (preserving resourceVersion) if it
// already exists. Contents are always fully re-rendered, so a stale ConfigMap left over from a
// crashed prior attempt never silently lingers.
func upsertConfigMap(ctx context.Context, deps Deps, cm *corev1.ConfigMap) error {
	if err := deps.Create(ctx, cm); err != nil {
		if !errors.IsAlreadyExists(err) {
			return err
		}
		existing := &corev1.ConfigMap{}
		if err := deps.Get(ctx, types.NamespacedName{Name: cm.Name, Namespace: cm.Namespace}, existing); err != nil {
			return err
		}
		existing.Data = cm.Data
		existing.Labels = cm.Labels
		if err := deps.Update(ctx, existing); err != nil {
			return err
		}
		cm.ResourceVersion = existing.ResourceVersion
	}
	return nil
}

// patchConfigMapOwner adds an owner reference from cm to job, once job exists. The ConfigMap is
// deliberately created without an owner reference (it must exist before the Job that mounts it,
// and the Job must exist before it can be named as owner), so the reference is late-bound here:
// a second, idempotent write after the Job is created.
func patchConfigMapOwner(ctx context.Context, deps Deps, cm *corev1.ConfigMap, job *batchv1.Job) error {
	for _, ref := range cm.OwnerReferences {
		if ref.UID == job.UID {
			return nil
		}
	}
	blockOwnerDeletion := true
	controllerFalse := false
	cm.OwnerReferences = append(cm.OwnerReferences, metav1.OwnerReference{
		APIVersion:         "batch/v1",
		Kind:               "Job",
		Name:               job.Name,
		UID:                job.UID,
		Controller:         &controllerFalse,
		BlockOwnerDeletion: &blockOwnerDeletion,
	})
	return deps.Update(ctx, cm)
}

// handleDeletion runs the finalizer-path cleanup sweep (every Job and unowned ConfigMap matching
// obj's label selector, not just the generation named in status — an earlier contextVersion's
// artifacts, orphaned by a retry, are swept here too; a code run's workspace PVC is never touched,
// it outlives any single run) and removes the finalizer.
func handleDeletion(ctx context.Context, deps Deps, obj client.Object, finalizerName string) (ctrl.Result, error) {
	if !controllerutil.ContainsFinalizer(obj, finalizerName) {
		return ctrl.Result{}, nil
	}

	if err := gc.Cleanup(ctx, deps.Client, obj); err != nil {
		return ctrl.Result{}, fmt.Errorf("cleaning up run artifacts: %w", err)
	}

	controllerutil.RemoveFinalizer(obj, finalizerName)
	if err := deps.Update(ctx, obj); err != nil {
		return ctrl.Result{}, fmt.Errorf("removing finalizer: %w", err)
	}
	return ctrl.Result{}, nil
}

// readyCondition builds the single-element condition slice patched onto status, observed against
// obj's current generation.
func readyCondition(obj client.Object, conditionStatus metav1.ConditionStatus, reason, message string) []metav1.Condition {
	return []metav1.Condition{
		{
			Type:               agentsv1.ConditionTypeReady,
			Status:             conditionStatus,
			Reason:             reason,
			Message:            message,
			ObservedGeneration: obj.GetGeneration(),
			LastTransitionTime: metav1.Now(),
		},
	}
}
