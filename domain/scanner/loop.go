package scanner

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"time"

	"github.com/soocke/barcode-scanner-go/domain/capture"
	"github.com/soocke/barcode-scanner-go/domain/recognition"
)

// liveSource is the part of a capture session the loop reads from.
type liveSource interface {
	capture.FrameSource
	Ended() <-chan struct{}
}

// detectionLoop polls src every interval and runs capability on each frame
// it has not seen yet. It returns the first candidate found, ctx.Err() on
// cancellation, capture.ErrStreamEnded when the source dies, or
// recognition.ErrUnavailable when the capability reports a hard fault.
// Any other per-frame error is counted and ignored.
func detectionLoop(ctx context.Context, src liveSource, capability recognition.Capability, interval time.Duration, logger *slog.Logger) (recognition.Candidate, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		if err := ctx.Err(); err != nil {
			return recognition.Candidate{}, err
		}
		if snap, ok := src.CurrentFrame(); ok && snap.Sequence != lastSeq {
			lastSeq = snap.Sequence
			cand, found, err := detectFrame(ctx, capability, snap.Image)
			// A result computed after cancellation is discarded.
			if ctx.Err() != nil {
				return recognition.Candidate{}, ctx.Err()
			}
			switch {
			case errors.Is(err, recognition.ErrUnavailable):
				return recognition.Candidate{}, err
			case err != nil:
				detectFrameErrors.Inc()
				if logger != nil {
					logger.Debug("scanner.frame error", "sequence", snap.Sequence, "error", err)
				}
			case found:
				return cand, nil
			default:
				detectMisses.Inc()
			}
		}
		select {
		case <-ctx.Done():
			return recognition.Candidate{}, ctx.Err()
		case <-src.Ended():
			return recognition.Candidate{}, capture.ErrStreamEnded
		case <-ticker.C:
		}
	}
}

func detectFrame(ctx context.Context, capability recognition.Capability, img image.Image) (recognition.Candidate, bool, error) {
	detectAttempts.Inc()
	seq, err := capability.Detect(ctx, img)
	if err != nil {
		return recognition.Candidate{}, false, err
	}
	cand, ok := recognition.First(seq)
	return cand, ok, nil
}
