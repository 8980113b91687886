package audio

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrNotReady is returned by Push before a Demodulator is attached.
var ErrNotReady = errors.New("demodulator not ready")

// Demodulator turns one raw IQ block into PCM at hostSampleRate.
type Demodulator interface {
	Process(raw []byte, hostSampleRate, deviceSampleRate int) []float32
}

// DemodulatorFunc adapts a function to Demodulator.
type DemodulatorFunc func(raw []byte, hostSampleRate, deviceSampleRate int) []float32

func (f DemodulatorFunc) Process(raw []byte, hostSampleRate, deviceSampleRate int) []float32 {
	return f(raw, hostSampleRate, deviceSampleRate)
}

type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Stats is a snapshot of a session's counters.
type Stats struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	Pushed    uint64 `json:"pushed"`
	Dropped   uint64 `json:"dropped"`
	Underruns uint64 `json:"underruns"`
	Rendered  uint64 `json:"rendered"`
	Available int    `json:"available"`
}

// Session is one audio pipeline: a ring buffer fed by Push on the receive
// side and drained by FillBlock on the real-time side. States only move
// forward, Uninitialized -> Ready -> Streaming.
type Session struct {
	id             uuid.UUID
	ring           *RingBuffer
	hostSampleRate int
	logger         zerolog.Logger

	attach sync.Mutex
	demod  Demodulator
	state  atomic.Int32

	pushed    atomic.Uint64
	underruns atomic.Uint64
	rendered  atomic.Uint64
}

type SessionOption func(s *Session)

func WithLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

func WithRingCapacity(capacity int) SessionOption {
	return func(s *Session) {
		s.ring = NewRingBuffer(capacity)
	}
}

// WithDemodulator attaches d at construction, starting the session Ready.
func WithDemodulator(d Demodulator) SessionOption {
	return func(s *Session) {
		s.demod = d
	}
}

func NewSession(hostSampleRate int, opts ...SessionOption) *Session {
	s := &Session{
		id:             uuid.New(),
		hostSampleRate: hostSampleRate,
		logger:         log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ring == nil {
		s.ring = NewRingBuffer(DefaultRingCapacity)
	}
	if s.demod != nil {
		s.state.Store(int32(StateReady))
	}
	s.logger = s.logger.With().Str("session_id", s.id.String()).Logger()
	return s
}

func (s *Session) ID() string {
	return s.id.String()
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) HostSampleRate() int {
	return s.hostSampleRate
}

// AttachDemodulator moves an uninitialized session to Ready. Attaching to a
// session that already has a demodulator is an error.
func (s *Session) AttachDemodulator(d Demodulator) error {
	if d == nil {
		return errors.New("nil demodulator")
	}
	s.attach.Lock()
	defer s.attach.Unlock()
	if s.State() != StateUninitialized {
		return errors.New("demodulator already attached")
	}
	s.demod = d
	s.state.Store(int32(StateReady))
	s.logger.Info().Msg("demodulator attached")
	return nil
}

// Push demodulates raw and appends the PCM to the ring, returning the PCM
// so it can be fanned out elsewhere. Push must only be called from the
// single producer goroutine.
func (s *Session) Push(raw []byte, deviceSampleRate int) ([]float32, error) {
	if s.State() == StateUninitialized {
		return nil, ErrNotReady
	}
	pcm := s.demod.Process(raw, s.hostSampleRate, deviceSampleRate)
	s.ring.Push(pcm)
	s.pushed.Add(uint64(len(pcm)))

	if s.state.CompareAndSwap(int32(StateReady), int32(StateStreaming)) {
		s.logger.Info().Int("samples", len(pcm)).Msg("streaming")
	}
	return pcm, nil
}

// FillBlock is the real-time render callback. It fills out with the next
// len(out) samples or with silence, and never blocks, allocates or logs.
func (s *Session) FillBlock(out []float32) {
	if s.State() != StateStreaming {
		silence(out)
		return
	}
	if s.ring.Read(out) {
		s.rendered.Add(1)
		return
	}
	s.underruns.Add(1)
}

func (s *Session) Stats() Stats {
	return Stats{
		ID:        s.ID(),
		State:     s.State().String(),
		Pushed:    s.pushed.Load(),
		Dropped:   s.ring.Dropped(),
		Underruns: s.underruns.Load(),
		Rendered:  s.rendered.Load(),
		Available: s.ring.Available(),
	}
}
