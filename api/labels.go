package api

import "k8s.io/apimachinery/pkg/runtime/schema"

// Labels trivy-operator puts on every VulnerabilityReport it creates.

const (
	LabelResourceNamespace = "trivy-operator.resource.namespace"
	LabelResourceKind      = "trivy-operator.resource.kind"
	LabelResourceName      = "trivy-operator.resource.name"
	LabelContainerName     = "trivy-operator.container.name"
)

// VulnerabilityReportGVK identifies the trivy-operator CRD this operator
// watches. The CRD is owned by trivy-operator, so we work with unstructured
// objects instead of vendoring its Go types.
var VulnerabilityReportGVK = schema.GroupVersionKind{
	Group:   "aquasecurity.github.io",
	Version: "v1alpha1",
	Kind:    "VulnerabilityReport",
}
