// Package sfx synthesizes the arena's sound cues and encodes them as WAV
// for browsers. Nothing is loaded from disk.
package sfx

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"bond-arena/internal/game"
)

// SampleRate of every cue.
const SampleRate = beep.SampleRate(44100)

// Cue names, served as /api/sfx/{cue}.wav.
const (
	CueBond     = "bond"
	CueMolecule = "molecule"
	CueReject   = "reject"
	CueUndo     = "undo"
	CueSpawn    = "spawn"
)

// ErrUnknownCue is returned for names outside Cues().
var ErrUnknownCue = errors.New("unknown sound cue")

var format = beep.Format{SampleRate: SampleRate, NumChannels: 1, Precision: 2}

// CueFor maps a simulation notice to the cue a client should play.
func CueFor(kind game.NoticeKind) (string, bool) {
	switch kind {
	case game.NoticeBondFormed:
		return CueBond, true
	case game.NoticeMoleculeFormed:
		return CueMolecule, true
	case game.NoticeBondRejected:
		return CueReject, true
	case game.NoticeBondUndone:
		return CueUndo, true
	case game.NoticeAtomSpawned:
		return CueSpawn, true
	default:
		return "", false
	}
}

// Bank builds cues on first use and keeps the encoded bytes.
type Bank struct {
	volume float64

	mu    sync.Mutex
	cache map[string][]byte
}

// NewBank creates a bank with master volume in [0, 1].
func NewBank(volume float64) *Bank {
	return &Bank{volume: min(max(volume, 0), 1), cache: make(map[string][]byte)}
}

// Cues lists the available cue names.
func (b *Bank) Cues() []string {
	return []string{CueBond, CueMolecule, CueReject, CueUndo, CueSpawn}
}

// CueFor maps a notice to its cue, for clients that want sound.
func (b *Bank) CueFor(kind game.NoticeKind) (string, bool) {
	return CueFor(kind)
}

// Streamer returns a fresh streamer for cue.
func (b *Bank) Streamer(cue string) (beep.Streamer, error) {
	var s beep.Streamer
	switch cue {
	case CueBond:
		// Rising two-partial blip
		s = beep.Mix(
			gain(Shape(Glide(520, 780, 90*time.Millisecond, WaveSine, SampleRate), 90*time.Millisecond, 4*time.Millisecond, 60*time.Millisecond, SampleRate), 0.7),
			gain(Shape(Glide(1040, 1560, 90*time.Millisecond, WaveSine, SampleRate), 90*time.Millisecond, 4*time.Millisecond, 40*time.Millisecond, SampleRate), 0.2),
		)
	case CueMolecule:
		// Major arpeggio, C5 E5 G5 C6
		s = beep.Seq(
			note(523.25, 80*time.Millisecond, WaveSine, SampleRate),
			note(659.25, 80*time.Millisecond, WaveSine, SampleRate),
			note(783.99, 80*time.Millisecond, WaveSine, SampleRate),
			note(1046.50, 220*time.Millisecond, WaveSine, SampleRate),
		)
	case CueReject:
		s = gain(Shape(Tone(110, 160*time.Millisecond, WaveSaw, SampleRate), 160*time.Millisecond, 2*time.Millisecond, 60*time.Millisecond, SampleRate), 0.5)
	case CueUndo:
		s = gain(beep.Seq(
			note(440, 60*time.Millisecond, WaveSquare, SampleRate),
			note(330, 80*time.Millisecond, WaveSquare, SampleRate),
		), 0.3)
	case CueSpawn:
		s = beep.Mix(
			gain(Shape(Tone(0, 70*time.Millisecond, WaveNoise, SampleRate), 70*time.Millisecond, 10*time.Millisecond, 50*time.Millisecond, SampleRate), 0.15),
			gain(Shape(Glide(900, 1400, 70*time.Millisecond, WaveSine, SampleRate), 70*time.Millisecond, 5*time.Millisecond, 50*time.Millisecond, SampleRate), 0.3),
		)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCue, cue)
	}
	return gain(s, b.volume), nil
}

// WAV returns the encoded cue. The returned slice is shared; do not modify it.
func (b *Bank) WAV(cue string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if data, ok := b.cache[cue]; ok {
		return data, nil
	}

	s, err := b.Streamer(cue)
	if err != nil {
		return nil, err
	}
	var buf seekBuffer
	if err := wav.Encode(&buf, s, format); err != nil {
		return nil, fmt.Errorf("encode %s: %w", cue, err)
	}
	b.cache[cue] = buf.data
	return buf.data, nil
}

// seekBuffer is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch the header sizes.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.data) {
		b.data = append(b.data, make([]byte, end-len(b.data))...)
	}
	n := copy(b.data[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.data)) + offset
	default:
		return 0, errors.New("seekBuffer: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("seekBuffer: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}
