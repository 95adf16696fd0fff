package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/vova616/screenshot"
	"golang.org/x/time/rate"
)

const defaultScreenFPS = 10

// ScreenDevice treats a region of the desktop as a camera, for scanning
// barcodes shown on screen (product pages, PDFs, a phone mirrored to the
// desktop).
type ScreenDevice struct {
	region image.Rectangle
	fps    float64
	logger *slog.Logger
}

// NewScreenDevice captures region at fps frames per second. An empty region
// selects a centered rectangle of the hinted size, or the whole screen when
// the hint has no size.
func NewScreenDevice(region image.Rectangle, fps float64, logger *slog.Logger) *ScreenDevice {
	if fps <= 0 {
		fps = defaultScreenFPS
	}
	return &ScreenDevice{region: region, fps: fps, logger: logger}
}

func (d *ScreenDevice) Name() string { return "screen" }

func (d *ScreenDevice) Open(ctx context.Context, hint Hint) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	screen, err := screenshot.ScreenRect()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
	}
	r := d.resolveRegion(screen, hint)
	if r.Empty() {
		return nil, fmt.Errorf("%w: region %v outside screen %v", ErrDeviceNotFound, d.region, screen)
	}
	if d.logger != nil {
		d.logger.Debug("screen.open", "region", r.String(), "fps", d.fps)
	}
	return &screenStream{
		region:  r,
		limiter: rate.NewLimiter(rate.Limit(d.fps), 1),
		track:   &screenTrack{id: uuid.NewString(), stopped: make(chan struct{})},
	}, nil
}

func (d *ScreenDevice) resolveRegion(screen image.Rectangle, hint Hint) image.Rectangle {
	if !d.region.Empty() {
		return d.region.Intersect(screen)
	}
	if hint.Width <= 0 || hint.Height <= 0 {
		return screen
	}
	c := image.Pt(screen.Min.X+screen.Dx()/2, screen.Min.Y+screen.Dy()/2)
	r := image.Rect(c.X-hint.Width/2, c.Y-hint.Height/2, c.X+hint.Width/2, c.Y+hint.Height/2)
	return r.Intersect(screen)
}

type screenStream struct {
	region  image.Rectangle
	limiter *rate.Limiter
	track   *screenTrack
}

func (s *screenStream) Tracks() []Track { return []Track{s.track} }

func (s *screenStream) ReadFrame(ctx context.Context) (image.Image, error) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.track.stopped:
			cancel()
		case <-waitCtx.Done():
		}
	}()
	if err := s.limiter.Wait(waitCtx); err != nil {
		if s.track.isStopped() {
			return nil, ErrStreamEnded
		}
		return nil, err
	}
	if s.track.isStopped() {
		return nil, ErrStreamEnded
	}
	img, err := screenshot.CaptureRect(s.region)
	if err != nil {
		return nil, err
	}
	return img, nil
}

type screenTrack struct {
	id      string
	once    sync.Once
	stopped chan struct{}
}

func (t *screenTrack) ID() string { return t.id }

func (t *screenTrack) Stop() error {
	t.once.Do(func() { close(t.stopped) })
	return nil
}

func (t *screenTrack) isStopped() bool {
	select {
	case <-t.stopped:
		return true
	default:
		return false
	}
}

var _ Device = (*ScreenDevice)(nil)
