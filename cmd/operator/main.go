package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/go-logr/logr"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/scandrift/trivy-dojo-operator/internal/cmdutil"
	"github.com/scandrift/trivy-dojo-operator/internal/config"
	"github.com/scandrift/trivy-dojo-operator/internal/controller"
	"github.com/scandrift/trivy-dojo-operator/internal/dojo"
)

func main() {
	var logLevel string
	var metricsAddr string
	var probeAddr string
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error).")
	flag.StringVar(&metricsAddr, "metrics-bind-address", ":8080", "The address the metrics endpoint binds to.")
	flag.StringVar(&probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	flag.Parse()

	level, err := cmdutil.ParseLogLevel(logLevel)
	if err != nil {
		slog.Error("invalid log level", "error", err)
		os.Exit(1)
	}

	logger := cmdutil.NewLogger(os.Stdout, level).With("component", "operator")
	ctrl.SetLogger(logr.FromSlogHandler(logger.Handler()))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Metrics: metricsserver.Options{
			BindAddress: metricsAddr,
		},
		HealthProbeBindAddress: probeAddr,
	})
	if err != nil {
		logger.Error("failed to create manager", "error", err)
		os.Exit(1)
	}

	dojoClient := dojo.NewClient(cfg, logger)
	reconciler := controller.NewVulnerabilityReportReconciler(mgr.GetClient(), cfg, dojoClient)
	if err := reconciler.SetupWithManager(mgr); err != nil {
		logger.Error("failed to set up VulnerabilityReport controller", "error", err)
		os.Exit(1)
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		logger.Error("failed to set up health check", "error", err)
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		logger.Error("failed to set up ready check", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting operator")
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		logger.Error("failed to run manager", "error", err)
		os.Exit(1)
	}
}
