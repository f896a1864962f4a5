package dojo

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/scandrift/trivy-dojo-operator/internal/config"
	"github.com/scandrift/trivy-dojo-operator/internal/report"
)

const (
	scanType             = "Trivy Operator Scan"
	engagementNamePrefix = "FedRamp Audit - "

	// trivy-operator writes creationTimestamp in UTC without fractional
	// seconds. Anything else is malformed input.
	creationTimestampLayout = "2006-01-02T15:04:05Z"
)

// Identity is the composite key DefectDojo groups findings under, so that
// repeated scans of the same deployed component land on the same service.
type Identity struct {
	Namespace     string
	ResourceKind  string
	ResourceName  string
	ContainerName string
	Repository    string
}

// Service renders the identity as the DefectDojo service string:
// <namespace>__<kind>__<name>__<container>__<repository>.
func (i Identity) Service() string {
	return strings.Join([]string{
		i.Namespace,
		i.ResourceKind,
		i.ResourceName,
		i.ContainerName,
		i.Repository,
	}, "__")
}

// Payload is a fully assembled reimport-scan request: the report body
// serialized as the report.json file part, plus the flat form fields.
type Payload struct {
	ReportJSON []byte
	Fields     map[string]string
}

// Builder turns VulnerabilityReport events into reimport-scan payloads.
// It performs no I/O and is safe for concurrent use.
type Builder struct {
	policy config.ScanPolicy
}

func NewBuilder(cfg config.Config) *Builder {
	return &Builder{policy: cfg.ScanPolicy}
}

// Build derives the service identity and scan metadata from the event and
// assembles the upload payload. It fails with a MalformedInputError when the
// creation timestamp does not match the fixed layout.
func (b *Builder) Build(event *report.Event) (*Payload, error) {
	createdAt, err := time.Parse(creationTimestampLayout, event.CreationTimestamp)
	if err != nil {
		return nil, &report.MalformedInputError{
			Field:  "metadata.creationTimestamp",
			Reason: fmt.Sprintf("unable to parse timestamp %q: %v", event.CreationTimestamp, err),
		}
	}
	// time.Parse tolerates fractional seconds even when the layout has
	// none. The round-trip check keeps the accepted format exact.
	if createdAt.UTC().Format(creationTimestampLayout) != event.CreationTimestamp {
		return nil, &report.MalformedInputError{
			Field:  "metadata.creationTimestamp",
			Reason: fmt.Sprintf("timestamp %q does not match the %s layout", event.CreationTimestamp, creationTimestampLayout),
		}
	}
	scanDate := createdAt.Format("2006-01-02")
	scanMonth := createdAt.Month().String()

	resourceName := event.ResourceName
	if event.ResourceKind == "ReplicaSet" {
		// ReplicaSets created from a Deployment carry a generated hash
		// suffix. Drop the last hyphen-delimited token so that repeated
		// rollouts map to the same service.
		parts := strings.Split(resourceName, "-")
		resourceName = strings.Join(parts[:len(parts)-1], "-")
	}

	identity := Identity{
		Namespace:     event.Namespace,
		ResourceKind:  event.ResourceKind,
		ResourceName:  resourceName,
		ContainerName: event.ContainerName,
		Repository:    event.ArtifactRepository,
	}

	reportJSON, err := json.Marshal(event.Body)
	if err != nil {
		return nil, &report.MalformedInputError{
			Field:  "body",
			Reason: fmt.Sprintf("unable to serialize report body: %v", err),
		}
	}

	fields := map[string]string{
		"active":                           b.policy.Active,
		"verified":                         b.policy.Verified,
		"scan_date":                        scanDate,
		"close_old_findings":               b.policy.CloseOldFindings,
		"close_old_findings_product_scope": b.policy.CloseOldFindingsProductScope,
		"minimum_severity":                 b.policy.MinimumSeverity,
		"auto_create_context":              b.policy.AutoCreateContext,
		"deduplication_on_engagement":      b.policy.DeduplicationOnEngagement,
		"do_not_reactivate":                b.policy.DoNotReactivate,
		"scan_type":                        scanType,
		"engagement_name":                  engagementNamePrefix + scanMonth,
		"environment":                      b.policy.Environment,
		"product_name":                     b.policy.ProductName,
		"product_type_name":                b.policy.ProductTypeName,
		"group_by":                         b.policy.GroupBy,
		"test_title":                       event.Name,
		"service":                          identity.Service(),
		"version":                          event.ArtifactTag,
		"tags":                             "image_digest=" + event.ArtifactDigest,
	}

	return &Payload{
		ReportJSON: reportJSON,
		Fields:     fields,
	}, nil
}
