// Copyright Contributors to the Orchestrator project

// Package status patches the status subresource of a run with a merge patch, suppressing
// writes that would not change the fields the reconciler's decision procedure cares about.
package status

import (
	"context"
	"encoding/json"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	agentsv1 "github.com/agents-platform/orchestrator/api/v1"
)

// Patch describes the status fields a reconcile step wants to write.
type Patch struct {
	Phase         agentsv1.RunPhase
	Message       string
	WorkCompleted bool
	JobName       string
	ConfigmapName string
	Conditions    []metav1.Condition
}

// Writer patches the status subresource of a run object using a JSON merge patch, so status
// updates never bump the spec generation and never re-trigger a spec reconcile.
type Writer struct {
	client.Client
}

// NewWriter returns a Writer backed by c.
func NewWriter(c client.Client) Writer {
	return Writer{Client: c}
}

// Apply patches obj's status subresource with p, skipping the round-trip when phase,
// workCompleted, jobName and configmapName are already equal to the object's in-memory status
// (message and conditions are not compared). now is injected so
// callers (and their tests) control the timestamp.
func (w Writer) Apply(ctx context.Context, obj client.Object, current *agentsv1.RunStatus, p Patch, now metav1.Time) error {
	if current.Phase == p.Phase && current.WorkCompleted == p.WorkCompleted &&
		current.JobName == p.JobName && current.ConfigmapName == p.ConfigmapName {
		return nil
	}

	body := map[string]any{
		"phase":         p.Phase,
		"message":       p.Message,
		"lastUpdate":    now.Format("2006-01-02T15:04:05Z07:00"),
		"workCompleted": p.WorkCompleted,
	}
	if p.JobName != "" {
		body["jobName"] = p.JobName
	}
	if p.ConfigmapName != "" {
		body["configmapName"] = p.ConfigmapName
	}
	if p.Conditions != nil {
		body["conditions"] = p.Conditions
	}

	payload, err := json.Marshal(map[string]any{"status": body})
	if err != nil {
		return fmt.Errorf("marshaling status patch: %w", err)
	}

	if err := w.Status().Patch(ctx, obj, client.RawPatch(types.MergePatchType, payload)); err != nil {
		return fmt.Errorf("patching status: %w", err)
	}

	current.Phase = p.Phase
	current.Message = p.Message
	current.WorkCompleted = p.WorkCompleted
	if p.JobName != "" {
		current.JobName = p.JobName
	}
	if p.ConfigmapName != "" {
		current.ConfigmapName = p.ConfigmapName
	}
	current.LastUpdate = &now
	if p.Conditions != nil {
		current.Conditions = p.Conditions
	}

	return nil
}
