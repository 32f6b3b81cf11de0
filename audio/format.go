// Package audio provides PCM format math, μ-law transcoding, and energy
// analysis for telephone-rate audio.
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Format describes a linear PCM audio format.
type Format struct {
	SampleRate int // Samples per second (e.g., 8000)
	Channels   int // Number of channels (1 for mono)
	BitDepth   int // Bits per sample (16 for signed 16-bit)
}

// TelephoneFormat returns the format carried by a phone media stream after
// μ-law decoding: 8 kHz mono signed 16-bit PCM.
func TelephoneFormat() Format {
	return Format{
		SampleRate: 8000,
		Channels:   1,
		BitDepth:   16,
	}
}

// BytesPerSample returns bytes per sample (bit depth / 8).
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// BytesPerSecond returns bytes per second of audio.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BytesPerSample()
}

// DurationToBytes converts a duration to byte count.
func (f Format) DurationToBytes(d time.Duration) int {
	seconds := d.Seconds()
	return int(seconds * float64(f.BytesPerSecond()))
}

// BytesToDuration converts byte count to duration.
func (f Format) BytesToDuration(bytes int) time.Duration {
	seconds := float64(bytes) / float64(f.BytesPerSecond())
	return time.Duration(seconds * float64(time.Second))
}

// FrameBytes returns the byte size of one frame of the given duration.
func (f Format) FrameBytes(frame time.Duration) int {
	return f.DurationToBytes(frame)
}

// RMSEnergy computes Root Mean Square energy for 16-bit little-endian PCM.
// Returns a value between 0.0 and 1.0.
func RMSEnergy(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}

	samples := len(pcm) / 2
	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
	}

	return math.Sqrt(sum / float64(samples))
}

// DurationMs calculates the duration in milliseconds of 16-bit mono PCM.
func DurationMs(pcmBytes int, sampleRate int) int64 {
	if sampleRate == 0 {
		sampleRate = 8000
	}
	bytesPerSecond := sampleRate * 2
	return int64(pcmBytes) * 1000 / int64(bytesPerSecond)
}
