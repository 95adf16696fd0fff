package capture

import (
	"time"
)

// SessionStats summarises pump behaviour for instrumentation.
type SessionStats struct {
	Frames         uint64
	ReadErrors     uint64
	Sequence       uint64
	LastCapture    time.Time
	LatestFrameAge time.Duration
	ActiveFor      time.Duration
}

func (s *Session) Stats() SessionStats {
	st := SessionStats{
		Frames:     s.frames.Load(),
		ReadErrors: s.readErrors.Load(),
	}
	if snap, ok := s.CurrentFrame(); ok {
		st.Sequence = snap.Sequence
		st.LastCapture = snap.CapturedAt
		st.LatestFrameAge = time.Since(snap.CapturedAt)
	}
	if at := s.acquiredAt.Load(); at != 0 {
		st.ActiveFor = time.Since(time.Unix(0, at))
	}
	return st
}
