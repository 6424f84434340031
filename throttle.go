package framethrottle

import (
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultFrameSkipThreshold is the minimum spacing between accepted frames,
// in milliseconds, for a target of roughly 60 FPS.
const DefaultFrameSkipThreshold = 16.67

// --- Copy Policies ---

// CopyPolicy selects how an accepted frame replaces the retained buffer.
// The two policies differ in which inputs they accept and how they fail, so
// a throttle uses exactly one for its whole lifetime.
type CopyPolicy int

const (
	// CopyExact keeps a pre-zeroed buffer of exactly width*height*4 bytes and
	// requires every accepted frame to have that length. Any other length
	// fails with ErrLengthMismatch.
	CopyExact CopyPolicy = iota
	// CopyChunked starts with an empty buffer of capacity width*height*4.
	// Each accepted frame replaces the buffer with its complete RGBA groups;
	// a trailing partial group is discarded without error.
	CopyChunked
)

func (p CopyPolicy) String() string {
	switch p {
	case CopyExact:
		return "exact"
	case CopyChunked:
		return "chunked"
	default:
		return fmt.Sprintf("CopyPolicy(%d)", int(p))
	}
}

// State is the lifecycle stage of a Throttle.
type State int

const (
	// StateRetained means no frame has been accepted yet.
	StateRetained State = iota
	// StateActive means at least one frame has been accepted.
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "retained"
}

// --- Events and Metrics ---

// EventType defines the kind of notable event emitted by the throttle.
type EventType string

const (
	EventFrameAccepted    EventType = "FrameAccepted"
	EventFrameSkipped     EventType = "FrameSkipped"
	EventFrameRejected    EventType = "FrameRejected"
	EventThresholdChanged EventType = "ThresholdChanged"
)

// Event is a notification sent by the throttle on every frame decision and
// threshold change.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Metadata  map[string]any
}

// Metrics holds counters describing the throttle's decisions so far.
type Metrics struct {
	FramesIn       uint64 // Total frames submitted to ProcessFrame.
	FramesAccepted uint64 // Frames copied into the retained buffer.
	FramesSkipped  uint64 // Frames that arrived inside the threshold window.
	FramesRejected uint64 // Frames refused with ErrLengthMismatch.
	BytesDropped   uint64 // Trailing partial-group bytes discarded by CopyChunked.
}

// --- Throttle Implementation ---

// Throttle forwards at most one frame per threshold window and keeps the last
// accepted frame in a single retained buffer. Callers always receive copies
// of that buffer, never the buffer itself.
//
// A Throttle is meant to be driven by one video pipeline delivering frames in
// order; the internal lock only makes Metrics safe to read from elsewhere.
type Throttle struct {
	mu sync.Mutex

	width  uint32
	height uint32
	size   int
	buffer []byte
	policy CopyPolicy

	lastAccepted time.Time
	state        State
	threshold    float64 // milliseconds

	clock   TimeProvider
	logger  logrus.FieldLogger
	eventCh chan<- Event
	metrics Metrics
}

// Option configures a Throttle at construction time.
type Option func(*Throttle)

// WithCopyPolicy selects the buffer copy policy. The default is CopyExact.
func WithCopyPolicy(policy CopyPolicy) Option {
	return func(t *Throttle) { t.policy = policy }
}

// WithFrameSkipThreshold sets the initial minimum spacing between accepted
// frames in milliseconds.
func WithFrameSkipThreshold(ms float64) Option {
	return func(t *Throttle) { t.threshold = ms }
}

// WithTimeProvider replaces the wall clock, typically with a fake in tests.
func WithTimeProvider(clock TimeProvider) Option {
	return func(t *Throttle) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithLogger injects a logger. The logrus standard logger is used otherwise.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(t *Throttle) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithEventChannel provides a channel for structured decision events.
// Sends never block; events are dropped when the channel is full.
func WithEventChannel(eventCh chan<- Event) Option {
	return func(t *Throttle) { t.eventCh = eventCh }
}

// New creates a throttle for frames of width x height RGBA pixels.
// It panics if width*height*4 does not fit in an int.
func New(width, height uint32, opts ...Option) *Throttle {
	t := &Throttle{
		width:     width,
		height:    height,
		size:      retainedSize(width, height),
		policy:    CopyExact,
		threshold: DefaultFrameSkipThreshold,
		clock:     DefaultTimeProvider{},
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.policy == CopyChunked {
		t.buffer = make([]byte, 0, t.size)
	} else {
		t.buffer = make([]byte, t.size)
	}

	t.logger.WithFields(logrus.Fields{
		"function":  "New",
		"width":     width,
		"height":    height,
		"policy":    t.policy.String(),
		"threshold": t.threshold,
	}).Info("Frame throttle created")
	return t
}

// retainedSize is width*height*4. Zero dimensions give an empty buffer.
func retainedSize(width, height uint32) int {
	if width == 0 || height == 0 {
		return 0
	}
	size, ok := frameSize(width, height)
	if !ok {
		panic(fmt.Sprintf("framethrottle: %dx%d frame is too large", width, height))
	}
	return size
}

// ProcessFrame submits one incoming frame. If less than the frame-skip
// threshold has elapsed since the last accepted frame, the retained buffer is
// returned untouched. Otherwise frame replaces the retained buffer according
// to the copy policy. The first frame is always accepted.
//
// The returned slice is a copy owned by the caller.
func (t *Throttle) ProcessFrame(frame []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.metrics.FramesIn++

	if t.state == StateActive {
		elapsed := millisBetween(t.lastAccepted, now)
		if elapsed < t.threshold {
			t.metrics.FramesSkipped++
			t.logger.WithFields(logrus.Fields{
				"function":   "ProcessFrame",
				"elapsed_ms": elapsed,
				"threshold":  t.threshold,
			}).Debug("Frame skipped")
			t.emitEvent(EventFrameSkipped, now, map[string]any{"elapsed_ms": elapsed})
			return t.snapshot(), nil
		}
	}

	switch t.policy {
	case CopyChunked:
		t.appendGroups(frame)
	default:
		if len(frame) != t.size {
			t.metrics.FramesRejected++
			t.logger.WithFields(logrus.Fields{
				"function": "ProcessFrame",
				"expected": t.size,
				"actual":   len(frame),
			}).Warn("Frame rejected: length mismatch")
			t.emitEvent(EventFrameRejected, now, map[string]any{"expected": t.size, "actual": len(frame)})
			return nil, fmt.Errorf("process frame: expected %d bytes, got %d: %w", t.size, len(frame), ErrLengthMismatch)
		}
		copy(t.buffer, frame)
	}

	t.lastAccepted = now
	t.state = StateActive
	t.metrics.FramesAccepted++
	t.logger.WithFields(logrus.Fields{
		"function": "ProcessFrame",
		"bytes":    len(t.buffer),
	}).Debug("Frame accepted")
	t.emitEvent(EventFrameAccepted, now, map[string]any{"bytes": len(t.buffer)})
	return t.snapshot(), nil
}

// appendGroups replaces the buffer with the complete 4-byte groups of frame
// in a single copy.
func (t *Throttle) appendGroups(frame []byte) {
	whole := len(frame) - len(frame)%BytesPerPixel
	t.buffer = append(t.buffer[:0], frame[:whole]...)
	if dropped := len(frame) - whole; dropped > 0 {
		t.metrics.BytesDropped += uint64(dropped)
		t.logger.WithFields(logrus.Fields{
			"function": "ProcessFrame",
			"dropped":  dropped,
		}).Debug("Discarded trailing partial RGBA group")
	}
}

// SetFrameSkipThreshold replaces the minimum spacing between accepted frames,
// in milliseconds. The value is not validated: zero or a negative threshold
// accepts every frame. The change applies from the next ProcessFrame call.
func (t *Throttle) SetFrameSkipThreshold(ms float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setThreshold(ms)
}

// SetFPS sets the threshold to one frame interval at the given rate.
// A rate of zero disables skipping.
func (t *Throttle) SetFPS(fps uint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fps == 0 {
		t.setThreshold(0)
		return
	}
	t.setThreshold(1000.0 / float64(fps))
}

func (t *Throttle) setThreshold(ms float64) {
	old := t.threshold
	t.threshold = ms
	t.logger.WithFields(logrus.Fields{
		"function":      "SetFrameSkipThreshold",
		"old_threshold": old,
		"new_threshold": ms,
	}).Info("Frame skip threshold changed")
	if math.Signbit(ms) {
		t.logger.WithField("threshold", ms).Debug("Negative threshold disables frame skipping")
	}
	t.emitEvent(EventThresholdChanged, t.clock.Now(), map[string]any{"old": old, "new": ms})
}

// FrameSkipThreshold returns the current threshold in milliseconds.
func (t *Throttle) FrameSkipThreshold() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.threshold
}

// Retained returns a copy of the retained buffer without submitting a frame.
// Under CopyChunked it is empty until the first frame is accepted.
func (t *Throttle) Retained() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// Surface builds a drawable image from the retained buffer.
func (t *Throttle) Surface() (*image.NRGBA, error) {
	return BuildSurface(t.Retained(), t.width, t.height)
}

// Width returns the frame width in pixels.
func (t *Throttle) Width() uint32 { return t.width }

// Height returns the frame height in pixels.
func (t *Throttle) Height() uint32 { return t.height }

// Policy returns the copy policy chosen at construction.
func (t *Throttle) Policy() CopyPolicy { return t.policy }

// State reports whether a frame has been accepted yet.
func (t *Throttle) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Metrics returns a snapshot of the throttle's counters.
func (t *Throttle) Metrics() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.metrics
}

func (t *Throttle) snapshot() []byte {
	out := make([]byte, len(t.buffer))
	copy(out, t.buffer)
	return out
}

func (t *Throttle) emitEvent(eventType EventType, at time.Time, metadata map[string]any) {
	if t.eventCh == nil {
		return
	}
	event := Event{Type: eventType, Timestamp: at, Metadata: metadata}
	select {
	case t.eventCh <- event:
	default: // Drop event if the channel is full to prevent blocking.
	}
}
