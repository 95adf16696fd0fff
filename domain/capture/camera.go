package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/prop"
)

var (
	rearLabels  = []string{"back", "rear", "environment", "world"}
	frontLabels = []string{"front", "user", "facetime", "integrated", "selfie"}
)

// CameraDevice opens a video input through pion/mediadevices, the Go
// counterpart of getUserMedia. Drivers register themselves by import; the
// linux build registers the V4L2 camera driver.
type CameraDevice struct {
	logger *slog.Logger
}

func NewCameraDevice(logger *slog.Logger) *CameraDevice { return &CameraDevice{logger: logger} }

func (d *CameraDevice) Name() string { return "camera" }

func (d *CameraDevice) Open(ctx context.Context, hint Hint) (Stream, error) {
	if err := probeVideoDevices(); err != nil {
		return nil, err
	}
	var inputs []mediadevices.MediaDeviceInfo
	for _, info := range mediadevices.EnumerateDevices() {
		if info.Kind == mediadevices.VideoInput {
			inputs = append(inputs, info)
		}
	}
	if len(inputs) == 0 {
		return nil, ErrDeviceNotFound
	}
	deviceID := pickDevice(inputs, hint.Facing)
	if d.logger != nil {
		d.logger.Debug("camera.open", "device_id", deviceID, "inputs", len(inputs), "facing", hint.Facing.String())
	}

	type opened struct {
		ms  mediadevices.MediaStream
		err error
	}
	ch := make(chan opened, 1)
	go func() {
		ms, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
			Video: func(c *mediadevices.MediaTrackConstraints) {
				c.DeviceID = prop.String(deviceID)
				if hint.Width > 0 {
					c.Width = prop.Int(hint.Width)
				}
				if hint.Height > 0 {
					c.Height = prop.Int(hint.Height)
				}
			},
		})
		ch <- opened{ms: ms, err: err}
	}()

	var res opened
	select {
	case res = <-ch:
	case <-ctx.Done():
		// GetUserMedia cannot be interrupted; close whatever it yields.
		go func() {
			if late := <-ch; late.err == nil {
				closeMediaTracks(late.ms.GetTracks())
			}
		}()
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, classifyOpenError(res.err)
	}

	all := res.ms.GetTracks()
	videos := res.ms.GetVideoTracks()
	if len(videos) == 0 {
		closeMediaTracks(all)
		return nil, ErrDeviceNotFound
	}
	vt, ok := videos[0].(*mediadevices.VideoTrack)
	if !ok {
		closeMediaTracks(all)
		return nil, fmt.Errorf("camera: unexpected track type %T", videos[0])
	}
	tracks := make([]Track, len(all))
	for i, t := range all {
		tracks[i] = mediaTrack{t}
	}
	return &cameraStream{tracks: tracks, reader: vt.NewReader(true)}, nil
}

// pickDevice prefers a device whose label names the requested facing and
// falls back to the first input.
func pickDevice(inputs []mediadevices.MediaDeviceInfo, facing Facing) string {
	want := rearLabels
	if facing == FacingFront {
		want = frontLabels
	}
	for _, info := range inputs {
		label := strings.ToLower(info.Label)
		for _, w := range want {
			if strings.Contains(label, w) {
				return info.DeviceID
			}
		}
	}
	return inputs[0].DeviceID
}

type frameReader interface {
	Read() (image.Image, func(), error)
}

type cameraStream struct {
	tracks []Track
	reader frameReader
}

func (s *cameraStream) Tracks() []Track { return s.tracks }

// ReadFrame blocks in the driver; closing the tracks unblocks it. The driver
// recycles its buffer on release, so the frame is cloned first.
func (s *cameraStream) ReadFrame(context.Context) (image.Image, error) {
	img, release, err := s.reader.Read()
	if err != nil {
		if release != nil {
			release()
		}
		if errors.Is(err, io.EOF) {
			return nil, ErrStreamEnded
		}
		return nil, err
	}
	out := imaging.Clone(img)
	if release != nil {
		release()
	}
	return out, nil
}

type mediaTrack struct{ t mediadevices.Track }

func (m mediaTrack) ID() string  { return m.t.ID() }
func (m mediaTrack) Stop() error { return m.t.Close() }

func closeMediaTracks(tracks []mediadevices.Track) {
	for _, t := range tracks {
		_ = t.Close()
	}
}

var _ Device = (*CameraDevice)(nil)
