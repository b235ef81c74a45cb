// Copyright Contributors to the Orchestrator project

//go:build integration

package controller

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	agentsv1 "github.com/agents-platform/orchestrator/api/v1"
)

var _ = Describe("DocsRun controller", func() {
	var namespace string

	BeforeEach(func() {
		ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{GenerateName: "docsrun-it-"}}
		Expect(k8sClient.Create(ctx, ns)).To(Succeed())
		namespace = ns.Name
	})

	// S1: happy path. A freshly created DocsRun gets a finalizer, then a ConfigMap and Job, then
	// transitions to Running, and finally to Succeeded once the owned Job reports success.
	It("drives a new DocsRun from creation through to success", func() {
		run := &agentsv1.DocsRun{
			ObjectMeta: metav1.ObjectMeta{Name: "nightly-docs", Namespace: namespace},
			Spec: agentsv1.DocsRunSpec{
				RepositoryUrl:    "https://example.com/docs.git",
				WorkingDirectory: "docs",
				SourceBranch:     "main",
				GithubUser:       "octocat",
			},
		}
		Expect(k8sClient.Create(ctx, run)).To(Succeed())

		key := types.NamespacedName{Name: run.Name, Namespace: namespace}

		Eventually(func() []string {
			var got agentsv1.DocsRun
			Expect(k8sClient.Get(ctx, key, &got)).To(Succeed())
			return got.Finalizers
		}, timeout, interval).Should(ContainElement(agentsv1.DocsRunFinalizer))

		var running agentsv1.DocsRun
		Eventually(func() agentsv1.RunPhase {
			Expect(k8sClient.Get(ctx, key, &running)).To(Succeed())
			return running.Status.Phase
		}, timeout, interval).Should(Equal(agentsv1.RunPhaseRunning))

		Expect(running.Status.JobName).NotTo(BeEmpty())
		Expect(running.Status.ConfigmapName).NotTo(BeEmpty())

		var job batchv1.Job
		Expect(k8sClient.Get(ctx, types.NamespacedName{Name: running.Status.JobName, Namespace: namespace}, &job)).To(Succeed())
		Expect(job.OwnerReferences).To(HaveLen(1))
		Expect(job.OwnerReferences[0].Kind).To(Equal("DocsRun"))

		var cm corev1.ConfigMap
		Expect(k8sClient.Get(ctx, types.NamespacedName{Name: running.Status.ConfigmapName, Namespace: namespace}, &cm)).To(Succeed())
		Eventually(func() []metav1.OwnerReference {
			var got corev1.ConfigMap
			Expect(k8sClient.Get(ctx, types.NamespacedName{Name: running.Status.ConfigmapName, Namespace: namespace}, &got)).To(Succeed())
			return got.OwnerReferences
		}, timeout, interval).Should(HaveLen(1), "the configmap owner reference is patched in after the job exists")

		By("marking the owned job complete")
		job.Status.Conditions = append(job.Status.Conditions, batchv1.JobCondition{
			Type: batchv1.JobComplete, Status: corev1.ConditionTrue,
		})
		Expect(k8sClient.Status().Update(ctx, &job)).To(Succeed())

		Eventually(func() agentsv1.RunPhase {
			var got agentsv1.DocsRun
			Expect(k8sClient.Get(ctx, key, &got)).To(Succeed())
			return got.Status.Phase
		}, timeout, interval).Should(Equal(agentsv1.RunPhaseSucceeded))

		var succeeded agentsv1.DocsRun
		Expect(k8sClient.Get(ctx, key, &succeeded)).To(Succeed())
		Expect(succeeded.Status.WorkCompleted).To(BeTrue())
	})

	// S3: the write-once workCompleted sentinel must survive the owned Job disappearing (as
	// happens once its ttlSecondsAfterFinished expires), so a later reconcile never recreates it.
	It("does not recreate the job once workCompleted is set and the job is gone", func() {
		run := &agentsv1.DocsRun{
			ObjectMeta: metav1.ObjectMeta{Name: "ttl-raced-docs", Namespace: namespace},
			Spec: agentsv1.DocsRunSpec{
				RepositoryUrl:    "https://example.com/docs.git",
				WorkingDirectory: "docs",
				SourceBranch:     "main",
				GithubUser:       "octocat",
			},
		}
		Expect(k8sClient.Create(ctx, run)).To(Succeed())
		key := types.NamespacedName{Name: run.Name, Namespace: namespace}

		var running agentsv1.DocsRun
		Eventually(func() string {
			Expect(k8sClient.Get(ctx, key, &running)).To(Succeed())
			return running.Status.JobName
		}, timeout, interval).ShouldNot(BeEmpty())

		var job batchv1.Job
		Expect(k8sClient.Get(ctx, types.NamespacedName{Name: running.Status.JobName, Namespace: namespace}, &job)).To(Succeed())
		job.Status.Conditions = append(job.Status.Conditions, batchv1.JobCondition{
			Type: batchv1.JobComplete, Status: corev1.ConditionTrue,
		})
		Expect(k8sClient.Status().Update(ctx, &job)).To(Succeed())

		Eventually(func() bool {
			var got agentsv1.DocsRun
			Expect(k8sClient.Get(ctx, key, &got)).To(Succeed())
			return got.Status.WorkCompleted
		}, timeout, interval).Should(BeTrue())

		originalJobName := running.Status.JobName
		Expect(k8sClient.Delete(ctx, &job)).To(Succeed())

		Consistently(func() string {
			var got agentsv1.DocsRun
			Expect(k8sClient.Get(ctx, key, &got)).To(Succeed())
			return got.Status.JobName
		}, time.Second*2, interval).Should(Equal(originalJobName), "a completed run must never get a second job")
	})

	// S6: deleting a DocsRun removes its owned ConfigMap/Job (via finalizer + Kubernetes GC) and
	// clears the finalizer so the resource actually disappears.
	It("removes the finalizer and lets the resource delete", func() {
		run := &agentsv1.DocsRun{
			ObjectMeta: metav1.ObjectMeta{Name: "cleanup-docs", Namespace: namespace},
			Spec: agentsv1.DocsRunSpec{
				RepositoryUrl:    "https://example.com/docs.git",
				WorkingDirectory: "docs",
				SourceBranch:     "main",
				GithubUser:       "octocat",
			},
		}
		Expect(k8sClient.Create(ctx, run)).To(Succeed())
		key := types.NamespacedName{Name: run.Name, Namespace: namespace}

		Eventually(func() []string {
			var got agentsv1.DocsRun
			Expect(k8sClient.Get(ctx, key, &got)).To(Succeed())
			return got.Finalizers
		}, timeout, interval).Should(ContainElement(agentsv1.DocsRunFinalizer))

		Expect(k8sClient.Delete(ctx, run)).To(Succeed())

		Eventually(func() bool {
			var got agentsv1.DocsRun
			err := k8sClient.Get(ctx, key, &got)
			return err != nil
		}, timeout, interval).Should(BeTrue())
	})
})
