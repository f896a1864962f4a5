package dojo

import "fmt"

// DeliveryRejectedError is returned when DefectDojo answers a reimport with a
// non-success status. The response body is kept for operator diagnosis.
type DeliveryRejectedError struct {
	Status     string
	StatusCode int
	Body       string
}

func (e *DeliveryRejectedError) Error() string {
	return fmt.Sprintf("DefectDojo rejected the scan import: %s: %s", e.Status, e.Body)
}

// TransportError wraps a network or serialization failure that prevented the
// submission from reaching DefectDojo at all.
//
// Like DeliveryRejectedError, it is treated as terminal by the reconciler:
// retry belongs to the watch framework, and retrying here as well would
// double up the loops. The cost is that a transient network blip drops the
// report. See DESIGN.md.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("unable to submit scan import to DefectDojo: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
