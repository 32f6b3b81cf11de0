package tts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cadencevoice/callpipe/audio"
	"github.com/cadencevoice/callpipe/session"
)

const (
	// chunkBytes is one outbound media payload: 20ms of 8kHz mu-law.
	chunkBytes = 160

	// chunkInterval paces chunk writes so the carrier's jitter buffer fills
	// slightly faster than real time without flooding.
	chunkInterval = 2 * time.Millisecond

	// gracePeriod holds the speaking flag after the last chunk so trailing
	// audio still in the carrier's buffer is not mistaken for silence.
	gracePeriod = 200 * time.Millisecond

	gracePollInterval = 20 * time.Millisecond
)

// Output carries dispatcher results back to the telephony stream.
type Output interface {
	// SendAudio writes one mu-law chunk to the caller.
	SendAudio(chunk []byte) error

	// SendClear tells the carrier to drop its buffered outbound audio.
	SendClear() error
}

// Dispatcher speaks synthesized text onto a live call. Audio goes out in
// fixed-size mu-law chunks with an interrupt check before every chunk, so a
// barge-in cuts playback within one chunk interval.
type Dispatcher struct {
	provider Provider
	opts     Options
	log      *slog.Logger
}

// NewDispatcher creates a dispatcher speaking with the given provider and
// default synthesis options.
func NewDispatcher(provider Provider, opts Options, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{provider: provider, opts: opts, log: log}
}

// Speak synthesizes text and streams it to the caller. It returns once all
// audio is delivered, playback is interrupted, or synthesis fails. The
// speaking flag is set for the whole delivery including the trailing grace
// period, and is always cleared before returning.
func (d *Dispatcher) Speak(ctx context.Context, st *session.State, out Output, text string) error {
	log := d.log.With("call_sid", st.CallSID())

	st.SetAISpeaking(true)
	// A stale interrupt request from a previous utterance must never cancel
	// this one.
	st.SetInterruptAI(false)
	st.SetClearCommandSent(false)

	stream, err := d.provider.Synthesize(ctx, text, d.opts)
	if err != nil {
		st.SetAISpeaking(false)
		return fmt.Errorf("synthesize: %w", err)
	}
	defer stream.Close()

	interrupted, err := d.deliver(ctx, st, out, stream)
	if err != nil {
		st.SetAISpeaking(false)
		return err
	}
	if interrupted {
		log.Info("playback interrupted by caller")
		st.SetAISpeaking(false)
		return nil
	}

	d.graceWait(ctx, st)
	st.SetAISpeaking(false)
	return nil
}

// deliver re-chunks the synthesis stream into wire-size mu-law payloads and
// writes them out, checking for barge-in before each chunk.
func (d *Dispatcher) deliver(ctx context.Context, st *session.State, out Output, stream *AudioStream) (bool, error) {
	var pending []byte
	flush := func(final bool) (bool, error) {
		for len(pending) >= chunkBytes || (final && len(pending) > 0) {
			n := chunkBytes
			if n > len(pending) {
				n = len(pending)
			}
			chunk := pending[:n]
			pending = pending[n:]

			if st.InterruptAI() {
				d.clearOnce(st, out)
				return true, nil
			}
			if err := out.SendAudio(chunk); err != nil {
				return false, fmt.Errorf("send audio: %w", err)
			}
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(chunkInterval):
			}
		}
		return false, nil
	}

	for ev := range stream.Events() {
		switch ev.Type {
		case AudioEventDelta:
			wire, err := d.toWire(stream.Meta().Format, ev.Data)
			if err != nil {
				return false, err
			}
			pending = append(pending, wire...)
			if stopped, err := flush(false); stopped || err != nil {
				return stopped, err
			}
		case AudioEventError:
			return false, fmt.Errorf("synthesis stream: %w", ev.Error)
		case AudioEventFinish:
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
	}
	if err := stream.Err(); err != nil {
		return false, fmt.Errorf("synthesis stream: %w", err)
	}
	return flush(true)
}

// toWire converts provider output to 8kHz mu-law.
func (d *Dispatcher) toWire(format AudioFormat, data []byte) ([]byte, error) {
	switch format {
	case FormatULaw8000:
		return data, nil
	case FormatPCM8000:
		return audio.EncodeULaw(data), nil
	case FormatPCM16000:
		return audio.EncodeULaw(audio.Downsample2x(data)), nil
	default:
		return nil, fmt.Errorf("unsupported synthesis format %q", format)
	}
}

// clearOnce sends at most one clear command per utterance.
func (d *Dispatcher) clearOnce(st *session.State, out Output) {
	if st.ClearCommandSent() {
		return
	}
	st.SetClearCommandSent(true)
	if err := out.SendClear(); err != nil {
		d.log.Warn("clear command failed", "call_sid", st.CallSID(), "error", err)
	}
}

// graceWait keeps the speaking flag up briefly after the last chunk, bailing
// early if the caller barges in during the tail.
func (d *Dispatcher) graceWait(ctx context.Context, st *session.State) {
	deadline := time.Now().Add(gracePeriod)
	for time.Now().Before(deadline) {
		if st.InterruptAI() || ctx.Err() != nil {
			return
		}
		time.Sleep(gracePollInterval)
	}
}
