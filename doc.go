/*
Package framethrottle limits a stream of raw RGBA video frames to a target
rate and hands the surviving frame back as a drawable image.

It is meant for pipelines where frames arrive faster than they can be drawn,
such as a video call feed rendered into a canvas. Each incoming frame is either
accepted, replacing a single retained buffer, or skipped, in which case the
previously retained frame is returned again.

# Key Features

  - Frame Skipping: Frames that arrive sooner than the frame-skip threshold
    after the last accepted frame are skipped cheaply.
  - Copy Isolation: Every result is a fresh copy of the retained buffer, so a
    caller can never mutate the throttle's state through a returned slice.
  - Two Copy Policies: CopyExact demands frames of exactly width*height*4
    bytes; CopyChunked accepts any length and keeps only complete RGBA groups.
  - Dynamic Configuration: The threshold can be changed between frames with
    SetFrameSkipThreshold or SetFPS.
  - Observability: Structured logrus logging, decision counters and an
    optional non-blocking event stream.
  - Deterministic Timing: The host clock is injected through TimeProvider.

# Basic Usage

	throttle := framethrottle.New(640, 480)

	for frame := range incoming {
		pix, err := throttle.ProcessFrame(frame)
		if err != nil {
			// errors.Is(err, framethrottle.ErrLengthMismatch)
			continue
		}
		surface, err := framethrottle.BuildSurface(pix, 640, 480)
		if err != nil {
			continue
		}
		draw(surface)
	}

BuildSurface returns an *image.NRGBA, whose non-premultiplied layout matches a
browser ImageData, so it can be handed to any image/draw consumer.

# Copy Policies

CopyExact starts from a zeroed buffer, so Retained and Surface are usable
before the first frame. CopyChunked starts empty; until a frame is accepted,
Retained returns a zero-length slice and Surface fails with ErrLengthMismatch.
CopyChunked also never reports malformed input: a trailing partial pixel is
dropped and counted in Metrics.BytesDropped.
*/
package framethrottle
