package recognition

import (
	"context"
	"fmt"
	"image"
	"iter"
	"log/slog"

	"github.com/makiuchi-d/gozxing"
)

// Mode selects how a ZXing capability treats its input.
type Mode int

const (
	// ModeContinuous decodes live frames as-is (after size capping).
	ModeContinuous Mode = iota
	// ModeStatic also tries a 90° rotation of the still image.
	ModeStatic
)

func (m Mode) String() string {
	if m == ModeStatic {
		return "static"
	}
	return "continuous"
}

// DefaultMaxDimension caps the longest side handed to the decoders.
const DefaultMaxDimension = 1600

// Options configures a ZXing capability.
type Options struct {
	// Formats lists accepted symbologies in the order readers are tried.
	// Nil selects DefaultFormats; an empty non-nil slice leaves the
	// capability unavailable.
	Formats []Format
	// TryHarder trades speed for accuracy.
	TryHarder bool
	// MaxDimension downsizes larger inputs; <= 0 disables resizing.
	MaxDimension int
	// ScanWindow restricts continuous mode to the centered fraction of each
	// frame; 0 scans the whole frame.
	ScanWindow float64
	Logger     *slog.Logger
}

// ZXing is a Capability backed by gozxing readers. Readers are created per
// Detect call so one ZXing may serve concurrent callers.
type ZXing struct {
	mode      Mode
	formats   []formatEntry
	tryHarder bool
	maxDim    int
	window    float64
	logger    *slog.Logger
}

// NewZXing builds a capability for mode with opts. Unknown formats in
// opts.Formats are ignored.
func NewZXing(mode Mode, opts Options) *ZXing {
	formats := opts.Formats
	if formats == nil {
		formats = DefaultFormats()
	}
	z := &ZXing{mode: mode, tryHarder: opts.TryHarder, maxDim: opts.MaxDimension, window: opts.ScanWindow, logger: opts.Logger}
	for _, f := range formats {
		if e, ok := lookup(f); ok {
			z.formats = append(z.formats, e)
		}
	}
	return z
}

// NewContinuous returns a capability for live frames.
func NewContinuous(opts Options) *ZXing { return NewZXing(ModeContinuous, opts) }

// NewStatic returns a capability for uploaded still images.
func NewStatic(opts Options) *ZXing { return NewZXing(ModeStatic, opts) }

func (z *ZXing) Available() bool { return z != nil && len(z.formats) > 0 }

// Formats reports the configured formats in reader order.
func (z *ZXing) Formats() []Format {
	out := make([]Format, len(z.formats))
	for i, e := range z.formats {
		out[i] = e.format
	}
	return out
}

func (z *ZXing) Detect(ctx context.Context, frame image.Image) (iter.Seq[Candidate], error) {
	if !z.Available() {
		return nil, ErrUnavailable
	}
	if frame == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrMalformedInput)
	}
	if b := frame.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty frame %v", ErrMalformedInput, b)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := frame
	if z.mode == ModeContinuous {
		base = scanWindow(base, z.window)
	}
	base = fitWithin(base, z.maxDim)
	bmp, err := gozxing.NewBinaryBitmapFromImage(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	hints := map[gozxing.DecodeHintType]interface{}{}
	if z.tryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	return func(yield func(Candidate) bool) {
		seen := make(map[Candidate]bool)
		emit := func(b *gozxing.BinaryBitmap) bool {
			for _, e := range z.formats {
				if ctx.Err() != nil {
					return false
				}
				c, ok := z.decode(e, b, hints)
				if !ok || seen[c] {
					continue
				}
				seen[c] = true
				if !yield(c) {
					return false
				}
			}
			return true
		}
		if !emit(bmp) || z.mode != ModeStatic {
			return
		}
		rotated, err := gozxing.NewBinaryBitmapFromImage(rotate90(base))
		if err != nil {
			return
		}
		emit(rotated)
	}, nil
}

// decode runs a single reader. gozxing reports "not found" as an error, so
// every reader failure is a miss here.
func (z *ZXing) decode(e formatEntry, bmp *gozxing.BinaryBitmap, hints map[gozxing.DecodeHintType]interface{}) (c Candidate, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if z.logger != nil {
				z.logger.Debug("recognition.reader panic", "format", e.name, "error", r)
			}
			ok = false
		}
	}()
	res, err := e.newReader().Decode(bmp, hints)
	if err != nil || res == nil {
		return Candidate{}, false
	}
	f := fromZXing(res.GetBarcodeFormat())
	if f == FormatUnknown {
		f = e.format
	}
	return Candidate{Code: res.GetText(), Format: f}, true
}

var _ Capability = (*ZXing)(nil)
