// Copyright Contributors to the Orchestrator project

// Package gc removes Jobs and ConfigMaps left behind by runs. Two entry points cover the two
// cleanup paths spec.md §4.6 describes: Cleanup runs synchronously from a run's finalizer at
// delete time; ScheduleJobCleanup is the optional delayed-cleanup check applied to a terminal
// Job by the periodic Sweeper. The Sweeper's orphan-owner sweep (sweepJobs/sweepConfigMaps) is
// a third, unconditional backstop for the case a finalizer never ran at all (operator downtime
// spanning a deletion, a crashed finalizer pass).
package gc

import (
	"context"
	"fmt"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	agentsv1 "github.com/agents-platform/orchestrator/api/v1"
	"github.com/agents-platform/orchestrator/internal/config"
)

// uid8 returns the first 8 characters of a resource UID, matching the slice
// internal/builder keys artifact names and the "run-uid" label on. Duplicated here rather
// than imported so this package never needs to depend on builder.
func uid8(uid string) string {
	if len(uid) <= 8 {
		return uid
	}
	return uid[:8]
}

// runSelector returns the label selector identifying every Job/ConfigMap ever created for run,
// across every contextVersion generation (each generation's artifacts differ in name but carry
// the same "run-uid" label).
func runSelector(run client.Object) client.MatchingLabels {
	return client.MatchingLabels{"app": "orchestrator", "run-uid": uid8(string(run.GetUID()))}
}

// Cleanup is the finalizer-path sweep: list Jobs and ConfigMaps matching run's label selector,
// delete the Jobs, and delete only the ConfigMaps that are not currently owned by a still-
// existing Job (an owned one is left for the Job's own cascade to remove, or was just deleted
// above and is already cascading). The workspace PVC is never touched here — it outlives any
// single run and is shared across every run of the same service.
func Cleanup(ctx context.Context, c client.Client, run client.Object) error {
	ns := run.GetNamespace()
	sel := runSelector(run)

	var jobs batchv1.JobList
	if err := c.List(ctx, &jobs, client.InNamespace(ns), sel); err != nil {
		return fmt.Errorf("listing jobs for cleanup: %w", err)
	}
	for i := range jobs.Items {
		job := &jobs.Items[i]
		if err := c.Delete(ctx, job, client.PropagationPolicy(metav1.DeletePropagationBackground)); err != nil && !errors.IsNotFound(err) {
			return fmt.Errorf("deleting job %s: %w", job.Name, err)
		}
	}

	var cms corev1.ConfigMapList
	if err := c.List(ctx, &cms, client.InNamespace(ns), sel); err != nil {
		return fmt.Errorf("listing configmaps for cleanup: %w", err)
	}
	for i := range cms.Items {
		cm := &cms.Items[i]
		owned, err := configMapOwnedByLiveJob(ctx, c, cm)
		if err != nil {
			return err
		}
		if owned {
			continue
		}
		if err := c.Delete(ctx, cm); err != nil && !errors.IsNotFound(err) {
			return fmt.Errorf("deleting configmap %s: %w", cm.Name, err)
		}
	}
	return nil
}

// ScheduleJobCleanup is the optional delayed-cleanup path: applied to a terminal job on every
// periodic sweep tick, it deletes job once it has been terminal for longer than its phase's
// configured delay. This no-ops unless cfg.Cleanup.Enabled. When DeleteConfigMap is false, the
// companion ConfigMap's owner reference is stripped before job is deleted, so a
// deleteConfigMap=false policy can never lose the ConfigMap to cascade GC racing the explicit
// delete below.
func ScheduleJobCleanup(ctx context.Context, c client.Client, cfg *config.Config, job *batchv1.Job) error {
	if cfg == nil || !cfg.Cleanup.Enabled {
		return nil
	}

	due, err := dueForCleanup(cfg, job)
	if err != nil || !due {
		return err
	}

	if !cfg.Cleanup.DeleteConfigMap {
		if err := detachConfigMapOwner(ctx, c, job); err != nil {
			return err
		}
	}

	if err := c.Delete(ctx, job, client.PropagationPolicy(metav1.DeletePropagationBackground)); err != nil && !errors.IsNotFound(err) {
		return err
	}
	return nil
}

// dueForCleanup reports whether job reached a terminal condition longer ago than its phase's
// configured delay. A Job that is still running, or has no terminal condition transition time
// recorded yet, is never due.
func dueForCleanup(cfg *config.Config, job *batchv1.Job) (bool, error) {
	var delay time.Duration
	var transition metav1.Time
	found := false

	for _, c := range job.Status.Conditions {
		if c.Status != "True" {
			continue
		}
		switch c.Type {
		case batchv1.JobComplete:
			delay = time.Duration(cfg.Cleanup.CompletedJobDelayMinutes) * time.Minute
			transition = c.LastTransitionTime
			found = true
		case batchv1.JobFailed:
			delay = time.Duration(cfg.Cleanup.FailedJobDelayMinutes) * time.Minute
			transition = c.LastTransitionTime
			found = true
		}
	}
	if !found {
		return false, nil
	}
	return clock().Sub(transition.Time) >= delay, nil
}

// detachConfigMapOwner removes job's owner reference from its companion ConfigMap, if present.
func detachConfigMapOwner(ctx context.Context, c client.Client, job *batchv1.Job) error {
	var cms corev1.ConfigMapList
	if err := c.List(ctx, &cms, client.InNamespace(job.Namespace), client.MatchingLabels{"app": "orchestrator"}); err != nil {
		return err
	}
	for i := range cms.Items {
		cm := &cms.Items[i]
		kept := cm.OwnerReferences[:0]
		changed := false
		for _, ref := range cm.OwnerReferences {
			if ref.Kind == "Job" && ref.UID == job.UID {
				changed = true
				continue
			}
			kept = append(kept, ref)
		}
		if changed {
			cm.OwnerReferences = kept
			if err := c.Update(ctx, cm); err != nil {
				return err
			}
		}
	}
	return nil
}

// configMapOwnedByLiveJob reports whether cm carries an owner reference to a Job that still
// exists. A ConfigMap owned by anything else is conservatively treated as still owned.
func configMapOwnedByLiveJob(ctx context.Context, c client.Client, cm *corev1.ConfigMap) (bool, error) {
	for _, ref := range cm.OwnerReferences {
		if ref.Kind != "Job" {
			return true, nil
		}
		job := &batchv1.Job{}
		err := c.Get(ctx, types.NamespacedName{Name: ref.Name, Namespace: cm.Namespace}, job)
		if err == nil {
			return true, nil
		}
		if !errors.IsNotFound(err) {
			return false, err
		}
	}
	return false, nil
}

// clock is a seam so tests could substitute a fixed time; production always uses time.Now.
var clock = time.Now

// Sweeper periodically runs the orphan-owner backstop (unconditional: it runs regardless of the
// cleanup policy, since it is the only recovery path when a finalizer never ran at all) and, when
// cleanup is enabled, the delayed terminal-Job cleanup. It implements manager.Runnable so it runs
// as a managed background task alongside the reconcile loops.
type Sweeper struct {
	client.Client
	Config   *config.Config
	Interval time.Duration
}

// Start runs the sweep loop until ctx is cancelled. The first sweep runs immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	logger := log.FromContext(ctx).WithName("gc")
	s.sweepOnce(ctx, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweepOnce(ctx, logger)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context, logger interface {
	Info(string, ...interface{})
	Error(error, string, ...interface{})
}) {
	// Unconditional: this is the backstop for a finalizer that never ran, and must not be gated
	// on the cleanup policy or it would have no recovery path of its own.
	if err := s.sweepJobs(ctx); err != nil {
		logger.Error(err, "sweeping orphaned jobs")
	}
	if err := s.sweepConfigMaps(ctx); err != nil {
		logger.Error(err, "sweeping orphaned configmaps")
	}
	if err := s.sweepTerminalJobs(ctx); err != nil {
		logger.Error(err, "sweeping terminal jobs past their cleanup delay")
	}
}

// sweepTerminalJobs applies ScheduleJobCleanup to every labeled Job; ScheduleJobCleanup itself
// no-ops when the cleanup policy is disabled.
func (s *Sweeper) sweepTerminalJobs(ctx context.Context) error {
	var jobs batchv1.JobList
	if err := s.List(ctx, &jobs, client.MatchingLabels{"app": "orchestrator"}); err != nil {
		return err
	}

	for i := range jobs.Items {
		if err := ScheduleJobCleanup(ctx, s.Client, s.Config, &jobs.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

// sweepJobs deletes Jobs whose every owner reference points at a DocsRun/CodeRun that no longer
// exists. A Job owned by anything else, or with no owner references, is left alone.
func (s *Sweeper) sweepJobs(ctx context.Context) error {
	var jobs batchv1.JobList
	if err := s.List(ctx, &jobs, client.MatchingLabels{"app": "orchestrator"}); err != nil {
		return err
	}

	for i := range jobs.Items {
		job := &jobs.Items[i]
		orphaned, err := s.runOwnerGone(ctx, job.Namespace, job.OwnerReferences)
		if err != nil {
			return err
		}
		if orphaned {
			if err := s.Delete(ctx, job, client.PropagationPolicy(metav1.DeletePropagationBackground)); err != nil && !errors.IsNotFound(err) {
				return err
			}
		}
	}
	return nil
}

// sweepConfigMaps deletes ConfigMaps whose owning Job no longer exists. A ConfigMap still
// referenced by a live Job is never touched here — the Job's own lifecycle (and the run's
// finalizer) own that decision.
func (s *Sweeper) sweepConfigMaps(ctx context.Context) error {
	var cms corev1.ConfigMapList
	if err := s.List(ctx, &cms, client.MatchingLabels{"app": "orchestrator"}); err != nil {
		return err
	}

	for i := range cms.Items {
		cm := &cms.Items[i]
		if len(cm.OwnerReferences) == 0 {
			continue
		}
		owned, err := configMapOwnedByLiveJob(ctx, s.Client, cm)
		if err != nil {
			return err
		}
		if !owned {
			if err := s.Delete(ctx, cm); err != nil && !errors.IsNotFound(err) {
				return err
			}
		}
	}
	return nil
}

// runOwnerGone reports whether every DocsRun/CodeRun owner reference in refs resolves to a
// deleted object. Any owner of a different kind makes the object conservatively "not orphaned".
func (s *Sweeper) runOwnerGone(ctx context.Context, namespace string, refs []metav1.OwnerReference) (bool, error) {
	found := false
	for _, ref := range refs {
		if ref.Kind != "DocsRun" && ref.Kind != "CodeRun" {
			return false, nil
		}
		found = true

		u := &unstructured.Unstructured{}
		u.SetGroupVersionKind(agentsv1.GroupVersion.WithKind(ref.Kind))
		err := s.Get(ctx, types.NamespacedName{Name: ref.Name, Namespace: namespace}, u)
		if err == nil {
			return false, nil
		}
		if !errors.IsNotFound(err) {
			return false, err
		}
	}
	return found, nil
}
