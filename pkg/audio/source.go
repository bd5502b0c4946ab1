package audio

import "errors"

// ErrHangup is returned by [Source.Next] when the far end has ended the
// stream. It is an expected outcome, not a failure: the analysis loop maps it
// to the HANGUP classification.
var ErrHangup = errors.New("audio: stream ended")

// ErrNoFrames is returned by [Source.Next] when the source has waited out its
// patience without ever producing another frame and will not recover. The
// analysis loop maps it to the NOFRAMES classification.
var ErrNoFrames = errors.New("audio: no more frames")
