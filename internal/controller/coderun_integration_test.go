// Copyright Contributors to the Orchestrator project

//go:build integration

package controller

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	agentsv1 "github.com/agents-platform/orchestrator/api/v1"
)

var _ = Describe("CodeRun controller", func() {
	var namespace string

	BeforeEach(func() {
		ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{GenerateName: "coderun-it-"}}
		Expect(k8sClient.Create(ctx, ns)).To(Succeed())
		namespace = ns.Name
	})

	baseSpec := func() agentsv1.CodeRunSpec {
		return agentsv1.CodeRunSpec{
			TaskId:            42,
			Service:           "checkout",
			RepositoryUrl:     "https://example.com/checkout.git",
			DocsRepositoryUrl: "https://example.com/docs.git",
			Model:             "claude",
			GithubApp:         "checkout-bot",
		}
	}

	// S5: a code run without any configured GitHub identity must be rejected rather than started,
	// since an application identity is mandatory for code runs.
	It("rejects a CodeRun with no GitHub identity configured", func() {
		spec := baseSpec()
		spec.GithubApp = ""
		run := &agentsv1.CodeRun{
			ObjectMeta: metav1.ObjectMeta{Name: "no-identity", Namespace: namespace},
			Spec:       spec,
		}
		Expect(k8sClient.Create(ctx, run)).To(Succeed())
		key := types.NamespacedName{Name: run.Name, Namespace: namespace}

		Eventually(func() agentsv1.RunPhase {
			var got agentsv1.CodeRun
			Expect(k8sClient.Get(ctx, key, &got)).To(Succeed())
			return got.Status.Phase
		}, timeout, interval).Should(Equal(agentsv1.RunPhaseFailed))

		var failed agentsv1.CodeRun
		Expect(k8sClient.Get(ctx, key, &failed)).To(Succeed())
		Expect(failed.Status.JobName).To(BeEmpty())
		Expect(failed.Status.Conditions).NotTo(BeEmpty())
		Expect(failed.Status.Conditions[0].Reason).To(Equal(string(agentsv1.ReasonConfigurationError)))
	})

	// S2: bumping contextVersion on a retry of the same task produces a distinct Job/ConfigMap
	// pair while the two runs of the same service share one workspace PVC.
	It("gives retries of the same task distinct jobs on a shared workspace PVC", func() {
		first := &agentsv1.CodeRun{
			ObjectMeta: metav1.ObjectMeta{Name: "attempt-one", Namespace: namespace},
			Spec:       baseSpec(),
		}
		Expect(k8sClient.Create(ctx, first)).To(Succeed())
		firstKey := types.NamespacedName{Name: first.Name, Namespace: namespace}

		var runningFirst agentsv1.CodeRun
		Eventually(func() string {
			Expect(k8sClient.Get(ctx, firstKey, &runningFirst)).To(Succeed())
			return runningFirst.Status.JobName
		}, timeout, interval).ShouldNot(BeEmpty())

		secondSpec := baseSpec()
		secondSpec.ContextVersion = 2
		second := &agentsv1.CodeRun{
			ObjectMeta: metav1.ObjectMeta{Name: "attempt-two", Namespace: namespace},
			Spec:       secondSpec,
		}
		Expect(k8sClient.Create(ctx, second)).To(Succeed())
		secondKey := types.NamespacedName{Name: second.Name, Namespace: namespace}

		var runningSecond agentsv1.CodeRun
		Eventually(func() string {
			Expect(k8sClient.Get(ctx, secondKey, &runningSecond)).To(Succeed())
			return runningSecond.Status.JobName
		}, timeout, interval).ShouldNot(BeEmpty())

		Expect(runningSecond.Status.JobName).NotTo(Equal(runningFirst.Status.JobName))
		Expect(runningSecond.Status.ConfigmapName).NotTo(Equal(runningFirst.Status.ConfigmapName))

		var pvcs corev1.PersistentVolumeClaimList
		Expect(k8sClient.List(ctx, &pvcs, client.InNamespace(namespace))).To(Succeed())
		Expect(pvcs.Items).To(HaveLen(1), "both attempts of the same service share one workspace PVC")
	})
})
