// Package recognition wraps barcode decoding behind a small capability
// interface. A capability is either continuous (fed live video frames) or
// static (fed one decoded still image); a missing decoder is modelled by
// Unavailable rather than a nil check at call sites.
package recognition

import (
	"context"
	"errors"
	"image"
	"iter"
)

var (
	// ErrUnavailable reports that no decoder is configured or supported.
	ErrUnavailable = errors.New("recognition: capability unavailable")
	// ErrMalformedInput reports an input that cannot be treated as a frame.
	ErrMalformedInput = errors.New("recognition: malformed input")
)

// Candidate is one recognized code prior to selection.
type Candidate struct {
	Code   string `json:"code"`
	Format Format `json:"format"`
}

// Capability decodes barcodes from a single frame.
//
// Detect returns a lazy sequence: decoding work happens while the sequence
// is pulled, so a caller that only wants the first candidate stops after
// it. An empty sequence with a nil error means nothing was found.
type Capability interface {
	Available() bool
	Detect(ctx context.Context, frame image.Image) (iter.Seq[Candidate], error)
}

type unavailable struct{}

// Unavailable returns a capability that reports itself absent. Detect
// always fails with ErrUnavailable.
func Unavailable() Capability { return unavailable{} }

func (unavailable) Available() bool { return false }

func (unavailable) Detect(context.Context, image.Image) (iter.Seq[Candidate], error) {
	return nil, ErrUnavailable
}

// First pulls the first candidate from seq, if any.
func First(seq iter.Seq[Candidate]) (Candidate, bool) {
	if seq == nil {
		return Candidate{}, false
	}
	for c := range seq {
		return c, true
	}
	return Candidate{}, false
}
