package core

import "fmt"

// Stage names the pipeline stage that terminated a run.
type Stage string

const (
	StageTrigger  Stage = "trigger"
	StageValidate Stage = "validate"
	StageGenerate Stage = "generate"
	StagePublish  Stage = "publish"
)

// ValidationKind classifies payload validation failures.
type ValidationKind string

const (
	MissingField        ValidationKind = "missing_field"
	InconsistentRequest ValidationKind = "inconsistent_request"
)

// ValidationError reports a malformed or inconsistent payload. It is pure data:
// validation never performs I/O, so there is nothing to wrap.
type ValidationError struct {
	Kind  ValidationKind
	Field string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("missing required field %q", e.Field)
	case InconsistentRequest:
		return "reply_directly is true but tweet_id is missing"
	default:
		return string(e.Kind)
	}
}

// GenerationKind classifies generation failures.
type GenerationKind string

const (
	// GenerationBackend covers timeouts, transport errors, non-2xx responses
	// and unparseable bodies from the generation backend.
	GenerationBackend GenerationKind = "generation_backend"
	// LengthOrContent covers replies that came back fine but violate the
	// configured style rules (empty, out of bounds, disallowed opening,
	// missing trailer).
	LengthOrContent GenerationKind = "length_or_content"
)

// GenerationError is terminal for the run; a single failed attempt is never retried.
type GenerationError struct {
	Kind   GenerationKind
	Detail string
}

func (e *GenerationError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// PublishError reports a failed posting attempt. The generated text is still
// valid and stays available in the Outcome.
type PublishError struct {
	Detail string
}

func (e *PublishError) Error() string {
	if e.Detail == "" {
		return "publish failed"
	}
	return fmt.Sprintf("publish failed: %s", e.Detail)
}

// ErrKind maps a pipeline error to its taxonomy name for logs and metrics.
func ErrKind(err error) string {
	switch e := err.(type) {
	case nil:
		return ""
	case *ValidationError:
		return string(e.Kind)
	case *GenerationError:
		return string(e.Kind)
	case *PublishError:
		return "publish"
	default:
		return "internal"
	}
}
