package controller

import (
	"context"
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/event"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"

	"github.com/scandrift/trivy-dojo-operator/api"
	"github.com/scandrift/trivy-dojo-operator/internal/config"
	"github.com/scandrift/trivy-dojo-operator/internal/dojo"
	"github.com/scandrift/trivy-dojo-operator/internal/report"
)

// VulnerabilityReportReconciler forwards newly created trivy-operator
// VulnerabilityReports to DefectDojo.
type VulnerabilityReportReconciler struct {
	client.Client
	Builder   *dojo.Builder
	Submitter dojo.Submitter

	// Optional label filter from configuration. Reports not carrying
	// Label=LabelValue are never delivered to Reconcile.
	Label      string
	LabelValue string
}

// +kubebuilder:rbac:groups=aquasecurity.github.io,resources=vulnerabilityreports,verbs=get;list;watch

// Reconcile submits a single VulnerabilityReport to DefectDojo.
//
// Pipeline failures (malformed input, rejected delivery, transport failure)
// are terminal: the input or the remote verdict will not change on a
// requeue, and the watch already redelivers on reconnect. They are logged
// and swallowed so the framework does not re-enqueue. Only reads from the
// API server propagate as errors.
func (r *VulnerabilityReportReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	log := logf.FromContext(ctx)
	log.Info("Reconciling VulnerabilityReport")

	vulnerabilityReport := &unstructured.Unstructured{}
	vulnerabilityReport.SetGroupVersionKind(api.VulnerabilityReportGVK)
	if err := r.Get(ctx, req.NamespacedName, vulnerabilityReport); err != nil {
		if apierrors.IsNotFound(err) {
			log.V(1).Info("VulnerabilityReport not found, skipping", "vulnerabilityReport", req.NamespacedName)
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, fmt.Errorf("unable to get VulnerabilityReport: %w", err)
	}

	if err := r.submitReport(ctx, vulnerabilityReport); err != nil {
		if isTerminal(err) {
			log.Error(err, "Dropping VulnerabilityReport", "vulnerabilityReport", req.NamespacedName)
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	log.Info("VulnerabilityReport submitted to DefectDojo", "vulnerabilityReport", req.NamespacedName)

	return ctrl.Result{}, nil
}

// submitReport runs the build-and-submit pipeline for one report.
func (r *VulnerabilityReportReconciler) submitReport(ctx context.Context, obj *unstructured.Unstructured) error {
	reportEvent, err := report.NewEvent(obj)
	if err != nil {
		return err
	}

	payload, err := r.Builder.Build(reportEvent)
	if err != nil {
		return err
	}

	return r.Submitter.Submit(ctx, payload)
}

// isTerminal reports whether err is a classified pipeline failure that must
// not be requeued.
func isTerminal(err error) bool {
	var malformed *report.MalformedInputError
	var rejected *dojo.DeliveryRejectedError
	var transport *dojo.TransportError

	return errors.As(err, &malformed) || errors.As(err, &rejected) || errors.As(err, &transport)
}

// SetupWithManager sets up the controller with the Manager.
func (r *VulnerabilityReportReconciler) SetupWithManager(mgr ctrl.Manager) error {
	vulnerabilityReport := &unstructured.Unstructured{}
	vulnerabilityReport.SetGroupVersionKind(api.VulnerabilityReportGVK)

	err := ctrl.NewControllerManagedBy(mgr).
		For(vulnerabilityReport, builder.WithPredicates(creationOnly(), r.labelFilter())).
		WithOptions(controller.Options{
			MaxConcurrentReconciles: 10,
		}).
		Complete(r)
	if err != nil {
		return fmt.Errorf("failed to create VulnerabilityReport controller: %w", err)
	}

	return nil
}

// creationOnly restricts event delivery to resource creation. Updates and
// deletions are not part of the report lifecycle this operator manages, and
// reprocessing an updated report would duplicate its import.
func creationOnly() predicate.Predicate {
	return predicate.Funcs{
		CreateFunc:  func(event.CreateEvent) bool { return true },
		UpdateFunc:  func(event.UpdateEvent) bool { return false },
		DeleteFunc:  func(event.DeleteEvent) bool { return false },
		GenericFunc: func(event.GenericEvent) bool { return false },
	}
}

// labelFilter applies the optional configured label selector.
func (r *VulnerabilityReportReconciler) labelFilter() predicate.Predicate {
	return predicate.NewPredicateFuncs(func(obj client.Object) bool {
		if r.Label == "" || r.LabelValue == "" {
			return true
		}

		return obj.GetLabels()[r.Label] == r.LabelValue
	})
}

// NewVulnerabilityReportReconciler wires the pipeline components into a
// reconciler.
func NewVulnerabilityReportReconciler(
	k8sClient client.Client,
	cfg config.Config,
	submitter dojo.Submitter,
) *VulnerabilityReportReconciler {
	return &VulnerabilityReportReconciler{
		Client:     k8sClient,
		Builder:    dojo.NewBuilder(cfg),
		Submitter:  submitter,
		Label:      cfg.Label,
		LabelValue: cfg.LabelValue,
	}
}
