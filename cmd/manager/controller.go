// Copyright Contributors to the Orchestrator project

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	agentsv1 "github.com/agents-platform/orchestrator/api/v1"
	"github.com/agents-platform/orchestrator/internal/config"
	"github.com/agents-platform/orchestrator/internal/controller"
	"github.com/agents-platform/orchestrator/internal/gc"
	"github.com/agents-platform/orchestrator/internal/status"
	"github.com/agents-platform/orchestrator/internal/template"
)

var scheme = runtime.NewScheme()

func init() {
	_ = clientgoscheme.AddToScheme(scheme)
	_ = agentsv1.AddToScheme(scheme)

	rootCmd.AddCommand(controllerCmd)
}

var controllerCmd = &cobra.Command{
	Use:   "controller",
	Short: "Start the orchestrator controller manager",
	Long: `Start the controller manager that reconciles DocsRun and CodeRun resources.

Example:
  orchestrator controller --metrics-bind-address=:8080 --health-probe-bind-address=:8081`,
	RunE: runController,
}

var (
	metricsAddr          string
	healthProbeAddr      string
	enableLeaderElection bool
	configPath           string
	docsTemplateDir      string
	codeTemplateDir      string
	toolCatalogPath      string
	gcInterval           time.Duration
)

func init() {
	controllerCmd.Flags().StringVar(&metricsAddr, "metrics-bind-address", ":8080",
		"The address the metrics endpoint binds to.")
	controllerCmd.Flags().StringVar(&healthProbeAddr, "health-probe-bind-address", ":8081",
		"The address the health probe endpoint binds to.")
	controllerCmd.Flags().BoolVar(&enableLeaderElection, "leader-elect", false,
		"Enable leader election for controller manager. Enabling this will ensure there is only one active controller manager.")
	controllerCmd.Flags().StringVar(&configPath, "config", config.DefaultConfigPath,
		"Path to the mounted operator configuration document.")
	controllerCmd.Flags().StringVar(&docsTemplateDir, "docs-template-dir", "/etc/orchestrator/templates/docs",
		"Directory containing the DocsRun template set.")
	controllerCmd.Flags().StringVar(&codeTemplateDir, "code-template-dir", "/etc/orchestrator/templates/code",
		"Directory containing the CodeRun template set.")
	controllerCmd.Flags().DurationVar(&gcInterval, "gc-interval", 10*time.Minute,
		"Interval between orphaned Job/ConfigMap sweeps.")
	controllerCmd.Flags().StringVar(&toolCatalogPath, "tool-catalog", "/etc/orchestrator/catalog.yaml",
		"Path to the docs tool catalog document embedded in rendered prompts. Optional.")
}

func runController(cmd *cobra.Command, args []string) error {
	opts := zap.Options{Development: true}
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
	log := ctrl.Log.WithName("controller")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme: scheme,
		Metrics: metricsserver.Options{
			BindAddress: metricsAddr,
		},
		HealthProbeBindAddress: healthProbeAddr,
		LeaderElection:         enableLeaderElection,
		LeaderElectionID:       "orchestrator.agents.platform",
	})
	if err != nil {
		log.Error(err, "unable to start manager")
		return err
	}

	catalog, err := template.LoadCatalog(toolCatalogPath)
	if err != nil {
		log.Error(err, "unable to load tool catalog")
		return err
	}

	deps := controller.Deps{
		Status: status.NewWriter(mgr.GetClient()),
		Config: cfg,
		TemplateDirs: map[template.Kind]string{
			template.KindDocs: docsTemplateDir,
			template.KindCode: codeTemplateDir,
		},
		Catalog: catalog,
	}

	if err := (&controller.DocsRunReconciler{
		Client: mgr.GetClient(),
		Scheme: mgr.GetScheme(),
		Deps:   deps,
	}).SetupWithManager(mgr); err != nil {
		log.Error(err, "unable to set up DocsRun controller")
		return err
	}

	if err := (&controller.CodeRunReconciler{
		Client: mgr.GetClient(),
		Scheme: mgr.GetScheme(),
		Deps:   deps,
	}).SetupWithManager(mgr); err != nil {
		log.Error(err, "unable to set up CodeRun controller")
		return err
	}

	// Registered unconditionally: the orphan-owner sweep (sweepJobs/sweepConfigMaps) is the
	// backstop for a finalizer that never ran, and must not be gated on the cleanup policy.
	// Sweeper itself scopes cfg.Cleanup.Enabled to only the optional delayed terminal-Job sweep.
	if err := mgr.Add(&gc.Sweeper{Client: mgr.GetClient(), Config: cfg, Interval: gcInterval}); err != nil {
		log.Error(err, "unable to register garbage collector")
		return err
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		log.Error(err, "unable to set up health check")
		return err
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		log.Error(err, "unable to set up ready check")
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	log.Info("starting manager")
	if err := mgr.Start(ctx); err != nil {
		log.Error(err, "problem running manager")
		return err
	}
	return nil
}
