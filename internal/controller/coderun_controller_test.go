// Copyright Contributors to the Orchestrator project

package controller

import (
	"context"
	"testing"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	agentsv1 "github.com/agents-platform/orchestrator/api/v1"
	"github.com/agents-platform/orchestrator/internal/status"
	"github.com/agents-platform/orchestrator/internal/template"
)

func TestCodeRunReconcileRejectsMissingAppIdentity(t *testing.T) {
	run := &agentsv1.CodeRun{
		ObjectMeta: metav1.ObjectMeta{Name: "task-7", Namespace: "team-a", UID: types.UID("1234567890ab"), Finalizers: []string{agentsv1.CodeRunFinalizer}},
		Spec: agentsv1.CodeRunSpec{
			TaskId: 7, Service: "checkout", Model: "claude", RepositoryUrl: "https://example.com/checkout.git",
			DocsRepositoryUrl: "https://example.com/docs.git",
			GithubUser:        "octocat", // user identity only: code runs require an app identity
		},
	}
	scheme := newDocsScheme(t)
	c := fake.NewClientBuilder().WithScheme(scheme).WithStatusSubresource(&agentsv1.CodeRun{}).WithObjects(run).Build()

	r := &CodeRunReconciler{Client: c, Deps: Deps{Client: c, Status: status.NewWriter(c), Config: testConfig()}}

	if _, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Name: "task-7", Namespace: "team-a"}}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	var updated agentsv1.CodeRun
	if err := c.Get(context.Background(), types.NamespacedName{Name: "task-7", Namespace: "team-a"}, &updated); err != nil {
		t.Fatalf("getting run: %v", err)
	}
	if updated.Status.Phase != agentsv1.RunPhaseFailed {
		t.Fatalf("Phase = %s, want %s (code runs require a githubApp identity)", updated.Status.Phase, agentsv1.RunPhaseFailed)
	}
}

func TestCodeRunReconcileCreatesWorkspacePVC(t *testing.T) {
	dir := t.TempDir()
	writeMinimalTemplates(t, dir, "mcp.json", "coding-guidelines.md", "code-hosting-guidelines.md")

	run := &agentsv1.CodeRun{
		ObjectMeta: metav1.ObjectMeta{Name: "task-9", Namespace: "team-a", UID: types.UID("abcdef0123456789"), Finalizers: []string{agentsv1.CodeRunFinalizer}},
		Spec: agentsv1.CodeRunSpec{
			TaskId: 9, Service: "checkout", Model: "claude",
			RepositoryUrl:     "https://example.com/checkout.git",
			DocsRepositoryUrl: "https://example.com/docs.git",
			GithubApp:         "release-bot",
		},
	}
	scheme := newDocsScheme(t)
	c := fake.NewClientBuilder().WithScheme(scheme).WithStatusSubresource(&agentsv1.CodeRun{}).WithObjects(run).Build()

	r := &CodeRunReconciler{
		Client: c,
		Deps: Deps{
			Client: c,
			Status: status.NewWriter(c),
			Config: testConfig(),
			TemplateDirs: map[template.Kind]string{
				template.KindCode: dir,
			},
		},
	}

	if _, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Name: "task-9", Namespace: "team-a"}}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	var pvc corev1.PersistentVolumeClaim
	if err := c.Get(context.Background(), types.NamespacedName{Name: "workspace-checkout", Namespace: "team-a"}, &pvc); err != nil {
		t.Fatalf("expected workspace pvc to be created: %v", err)
	}

	var updated agentsv1.CodeRun
	if err := c.Get(context.Background(), types.NamespacedName{Name: "task-9", Namespace: "team-a"}, &updated); err != nil {
		t.Fatalf("getting run: %v", err)
	}
	if updated.Status.Phase != agentsv1.RunPhaseRunning {
		t.Fatalf("Phase = %s, want %s", updated.Status.Phase, agentsv1.RunPhaseRunning)
	}

	var job batchv1.Job
	if err := c.Get(context.Background(), types.NamespacedName{Name: updated.Status.JobName, Namespace: "team-a"}, &job); err != nil {
		t.Fatalf("expected job to exist: %v", err)
	}
	if job.Spec.Template.Spec.Volumes[1].PersistentVolumeClaim == nil {
		t.Fatalf("expected workspace volume to be backed by a PVC, got %+v", job.Spec.Template.Spec.Volumes[1])
	}
}
