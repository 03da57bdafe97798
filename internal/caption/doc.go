// Package caption holds the request-side plumbing around the model: image
// decoding and normalization, prompt assembly, sampling defaults and the
// cleanup applied to raw model output.
package caption
