package report

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/scandrift/trivy-dojo-operator/api"
)

// MalformedInputError signals that a VulnerabilityReport is missing a field
// the pipeline requires. Retrying cannot fix the input, so the reconciler
// treats it as terminal.
type MalformedInputError struct {
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed VulnerabilityReport: field %q: %s", e.Field, e.Reason)
}

// Event is a typed view over the fields of a VulnerabilityReport the
// pipeline consumes. The full object is kept alongside the extracted fields
// because the upload re-serializes it verbatim.
type Event struct {
	Name              string
	CreationTimestamp string
	Namespace         string
	ResourceKind      string
	ResourceName      string
	ContainerName     string

	RegistryServer     string
	ArtifactRepository string
	ArtifactTag        string
	ArtifactDigest     string

	Body map[string]any
}

// ImageFullName returns the scanned image reference in the
// <registry>/<repository>:<tag> form.
func (e *Event) ImageFullName() string {
	return fmt.Sprintf("%s/%s:%s", e.RegistryServer, e.ArtifactRepository, e.ArtifactTag)
}

// NewEvent validates a VulnerabilityReport eagerly and extracts the fields
// the pipeline needs. Every missing label or report sub-field surfaces as a
// MalformedInputError here instead of failing later in the middle of payload
// construction.
func NewEvent(obj *unstructured.Unstructured) (*Event, error) {
	labels := obj.GetLabels()

	namespace, err := requiredLabel(labels, api.LabelResourceNamespace)
	if err != nil {
		return nil, err
	}
	kind, err := requiredLabel(labels, api.LabelResourceKind)
	if err != nil {
		return nil, err
	}
	name, err := requiredLabel(labels, api.LabelResourceName)
	if err != nil {
		return nil, err
	}
	container, err := requiredLabel(labels, api.LabelContainerName)
	if err != nil {
		return nil, err
	}

	registryServer, err := requiredField(obj, "report", "registry", "server")
	if err != nil {
		return nil, err
	}
	repository, err := requiredField(obj, "report", "artifact", "repository")
	if err != nil {
		return nil, err
	}
	tag, err := requiredField(obj, "report", "artifact", "tag")
	if err != nil {
		return nil, err
	}
	digest, err := requiredField(obj, "report", "artifact", "digest")
	if err != nil {
		return nil, err
	}

	timestamp, err := requiredField(obj, "metadata", "creationTimestamp")
	if err != nil {
		return nil, err
	}

	return &Event{
		Name:               obj.GetName(),
		CreationTimestamp:  timestamp,
		Namespace:          namespace,
		ResourceKind:       kind,
		ResourceName:       name,
		ContainerName:      container,
		RegistryServer:     registryServer,
		ArtifactRepository: repository,
		ArtifactTag:        tag,
		ArtifactDigest:     digest,
		Body:               obj.Object,
	}, nil
}

func requiredLabel(labels map[string]string, key string) (string, error) {
	value, found := labels[key]
	if !found {
		return "", &MalformedInputError{Field: key, Reason: "required label is not set"}
	}

	return value, nil
}

func requiredField(obj *unstructured.Unstructured, path ...string) (string, error) {
	value, found, err := unstructured.NestedString(obj.Object, path...)
	field := fieldPath(path)
	if err != nil {
		return "", &MalformedInputError{Field: field, Reason: err.Error()}
	}
	if !found {
		return "", &MalformedInputError{Field: field, Reason: "required field is not set"}
	}

	return value, nil
}

func fieldPath(path []string) string {
	joined := path[0]
	for _, segment := range path[1:] {
		joined += "." + segment
	}

	return joined
}
