// Copyright Contributors to the Orchestrator project

//go:build integration

// This file uses the "integration" build tag to separate envtest-based tests from the plain
// `testing` unit tests in this package. `go test ./...` runs only the unit tests (fake client,
// no external binaries); `go test -tags=integration ./...` additionally runs this envtest-backed
// suite against a real (if ephemeral) API server and etcd.
package controller

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/envtest"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	agentsv1 "github.com/agents-platform/orchestrator/api/v1"
	"github.com/agents-platform/orchestrator/internal/config"
	"github.com/agents-platform/orchestrator/internal/status"
	"github.com/agents-platform/orchestrator/internal/template"
)

var (
	cfg         *rest.Config
	k8sClient   client.Client
	testEnv     *envtest.Environment
	ctx         context.Context
	cancel      context.CancelFunc
	scheme      *runtime.Scheme
	docsTplDir  string
	codeTplDir  string
	suiteConfig *config.Config
)

const (
	timeout  = time.Second * 10
	interval = time.Millisecond * 250
)

func TestControllers(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Controller Suite")
}

var _ = BeforeSuite(func() {
	logf.SetLogger(zap.New(zap.WriteTo(GinkgoWriter), zap.UseDevMode(true)))

	ctx, cancel = context.WithCancel(context.TODO())

	By("bootstrapping test environment")
	testEnv = &envtest.Environment{
		CRDDirectoryPaths:     []string{filepath.Join("..", "..", "config", "crd", "bases")},
		ErrorIfCRDPathMissing: true,
	}

	var err error
	cfg, err = testEnv.Start()
	Expect(err).NotTo(HaveOccurred())
	Expect(cfg).NotTo(BeNil())

	scheme = runtime.NewScheme()
	Expect(agentsv1.AddToScheme(scheme)).To(Succeed())
	Expect(corev1.AddToScheme(scheme)).To(Succeed())
	Expect(batchv1.AddToScheme(scheme)).To(Succeed())

	k8sClient, err = client.New(cfg, client.Options{Scheme: scheme})
	Expect(err).NotTo(HaveOccurred())
	Expect(k8sClient).NotTo(BeNil())

	By("writing a minimal template set for each run kind")
	docsTplDir = writeSuiteTemplates(GinkgoT(), []string{"container.sh", "CLAUDE.md", "settings.json", "prompt.md"})
	codeTplDir = writeSuiteTemplates(GinkgoT(), []string{"container.sh", "CLAUDE.md", "settings.json", "mcp.json", "coding-guidelines.md", "code-hosting-guidelines.md"})

	suiteConfig = &config.Config{}
	suiteConfig.Agent.Image.Repository = "registry.example.com/agent"
	suiteConfig.Agent.Image.Tag = "v1"
	suiteConfig.Secrets.APIKeySecretName = "agent-api-key"
	suiteConfig.Secrets.APIKeySecretKey = "key"
	suiteConfig.Job.ActiveDeadlineSeconds = 7200
	suiteConfig.Storage.WorkspaceSize = "1Gi"
	suiteConfig.Cleanup.Enabled = true
	suiteConfig.Cleanup.DeleteConfigMap = true

	k8sManager, err := ctrl.NewManager(cfg, ctrl.Options{Scheme: scheme})
	Expect(err).ToNot(HaveOccurred())

	deps := Deps{
		Status: status.NewWriter(k8sManager.GetClient()),
		Config: suiteConfig,
		TemplateDirs: map[template.Kind]string{
			template.KindDocs: docsTplDir,
			template.KindCode: codeTplDir,
		},
	}

	Expect((&DocsRunReconciler{Client: k8sManager.GetClient(), Scheme: k8sManager.GetScheme(), Deps: deps}).SetupWithManager(k8sManager)).To(Succeed())
	Expect((&CodeRunReconciler{Client: k8sManager.GetClient(), Scheme: k8sManager.GetScheme(), Deps: deps}).SetupWithManager(k8sManager)).To(Succeed())

	go func() {
		defer GinkgoRecover()
		Expect(k8sManager.Start(ctx)).To(Succeed(), "failed to run manager")
	}()
})

var _ = AfterSuite(func() {
	cancel()
	By("tearing down the test environment")
	Expect(testEnv.Stop()).NotTo(HaveOccurred())
})

// writeSuiteTemplates writes a minimal renderable template for each logical name into a fresh
// temp directory and returns the directory path.
func writeSuiteTemplates(t GinkgoTInterface, names []string) string {
	dir, err := os.MkdirTemp("", "orchestrator-templates-*")
	Expect(err).NotTo(HaveOccurred())
	for _, name := range names {
		Expect(os.WriteFile(filepath.Join(dir, name), []byte("{{ .Name }}\n"), 0o600)).To(Succeed())
	}
	return dir
}
