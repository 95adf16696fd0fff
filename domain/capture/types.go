package capture

import (
	"context"
	"image"
	"strings"
	"time"
)

// Facing is the preferred camera direction. It is a hint only.
type Facing int

const (
	FacingRear Facing = iota
	FacingFront
)

func (f Facing) String() string {
	if f == FacingFront {
		return "front"
	}
	return "rear"
}

// ParseFacing maps "front"/"user" to FacingFront; anything else is rear.
func ParseFacing(s string) Facing {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "front", "user":
		return FacingFront
	default:
		return FacingRear
	}
}

// Hint carries advisory acquisition preferences. Devices pick the closest
// match they can provide; none of the fields is a hard requirement.
type Hint struct {
	Facing Facing
	Width  int
	Height int
}

// DefaultHint prefers a rear camera at 1280x720.
func DefaultHint() Hint { return Hint{Facing: FacingRear, Width: 1280, Height: 720} }

// Track is one media track of an acquired stream.
type Track interface {
	ID() string
	Stop() error
}

// Stream is an exclusively owned live stream handle.
//
// ReadFrame blocks until the next frame is available. Stopping the stream's
// tracks must unblock it with ErrStreamEnded.
type Stream interface {
	Tracks() []Track
	ReadFrame(ctx context.Context) (image.Image, error)
}

// Device is a platform adapter able to open one stream per call.
type Device interface {
	Name() string
	Open(ctx context.Context, hint Hint) (Stream, error)
}

// FrameSnapshot carries the latest captured frame and metadata.
type FrameSnapshot struct {
	Image      image.Image
	CapturedAt time.Time
	Sequence   uint64
}

// FrameSource provides non-blocking access to the freshest frame.
type FrameSource interface {
	CurrentFrame() (FrameSnapshot, bool)
}
