package manager

import (
	"errors"
	"net/http"
)

// ErrManagerClosed is returned by Generate and EnsureLoaded after Shutdown.
var ErrManagerClosed = errors.New("manager: closed")

// ModelLoadError reports that the model could not be brought into memory:
// missing weight or projector file, incompatible file, out of memory, or a
// missing runtime binary. The HTTP layer maps it to 503.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	if e.Path == "" {
		return "model load failed: " + e.Err.Error()
	}
	return "model load failed: " + e.Path + ": " + e.Err.Error()
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// StatusCode implements the HTTP layer's HTTPError interface.
func (e *ModelLoadError) StatusCode() int { return http.StatusServiceUnavailable }

// GenerationError wraps a runtime failure during inference. The loaded model
// is kept; the HTTP layer maps it to 500.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return "caption generation failed: " + e.Err.Error() }

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) StatusCode() int { return http.StatusInternalServerError }

// IsModelLoad reports whether err is (or wraps) a *ModelLoadError.
func IsModelLoad(err error) bool {
	var e *ModelLoadError
	return errors.As(err, &e)
}

// IsGeneration reports whether err is (or wraps) a *GenerationError.
func IsGeneration(err error) bool {
	var e *GenerationError
	return errors.As(err, &e)
}

// IsClosed reports whether err indicates a shut down manager.
func IsClosed(err error) bool { return errors.Is(err, ErrManagerClosed) }
