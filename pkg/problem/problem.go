// Package problem renders the error taxonomy of spec.md section 7 as
// RFC 7807 problem details for structured logging at process
// boundaries, the same shape the collaborator services themselves use
// over HTTP.
package problem

import (
	"errors"

	"github.com/moogar0880/problems"

	"github.com/chime-frb/workflow-go/pkg/archive"
	"github.com/chime-frb/workflow-go/pkg/transport"
	"github.com/chime-frb/workflow-go/pkg/validate"
)

// FromError classifies err against the taxonomy and renders it as a
// *problems.Problem, falling back to a generic internal-error shape for
// anything unrecognized.
func FromError(err error) *problems.Problem {
	if err == nil {
		return nil
	}

	var validationErr *validate.Error
	if errors.As(err, &validationErr) {
		return problems.NewStatusProblem(400).
			WithType("validation_error").
			WithDetail(validationErr.Error())
	}

	var policyErr *archive.PolicyError
	if errors.As(err, &policyErr) {
		return problems.NewStatusProblem(422).
			WithType("archive_policy_error").
			WithDetail(policyErr.Error())
	}

	var clientErr *transport.ClientError
	if errors.As(err, &clientErr) {
		return problems.NewStatusProblem(clientErr.StatusCode).
			WithType("collaborator_rejected_request").
			WithDetail(clientErr.Error())
	}

	if errors.Is(err, transport.NoContent) {
		return problems.NewStatusProblem(204).
			WithType("no_content").
			WithDetail("nothing available")
	}

	return problems.NewStatusProblem(500).
		WithType("internal_error").
		WithError(err)
}
