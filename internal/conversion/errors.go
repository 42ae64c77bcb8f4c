package conversion

import "errors"

var (
	// ErrMissingDependency is returned when the converter sidecar for a
	// framework is not configured. The wrapping error names the exact extra.
	ErrMissingDependency = errors.New("missing conversion dependency")

	// ErrUnsupportedModelType is returned when no converter matches the
	// model's class name. Fatal to the registration request.
	ErrUnsupportedModelType = errors.New("unsupported model type")

	// ErrConversionFailure wraps an error raised by the underlying framework
	// conversion call.
	ErrConversionFailure = errors.New("model conversion failed")

	// ErrSchemaExtraction is returned when the inference session failed to
	// report signatures.
	ErrSchemaExtraction = errors.New("schema extraction failed")
)
