package audio

import "encoding/binary"

// G.711 μ-law constants.
const (
	ulawBias = 0x84
	ulawClip = 32635
)

// ulawDecodeTable maps each μ-law byte to its linear PCM sample.
var ulawDecodeTable [256]int16

func init() {
	for i := 0; i < 256; i++ {
		u := ^byte(i)
		sign := u & 0x80
		exponent := (u >> 4) & 0x07
		mantissa := u & 0x0F
		sample := int32((uint32(mantissa)<<3)+ulawBias) << exponent
		sample -= ulawBias
		if sign != 0 {
			sample = -sample
		}
		ulawDecodeTable[i] = int16(sample)
	}
}

// DecodeULaw converts μ-law bytes to 16-bit little-endian linear PCM.
func DecodeULaw(ulaw []byte) []byte {
	pcm := make([]byte, len(ulaw)*2)
	for i, b := range ulaw {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(ulawDecodeTable[b]))
	}
	return pcm
}

// EncodeULaw converts 16-bit little-endian linear PCM to μ-law bytes.
// A trailing odd byte is ignored.
func EncodeULaw(pcm []byte) []byte {
	out := make([]byte, len(pcm)/2)
	for i := 0; i+1 < len(pcm); i += 2 {
		out[i/2] = encodeSample(int16(binary.LittleEndian.Uint16(pcm[i : i+2])))
	}
	return out
}

func encodeSample(sample int16) byte {
	sign := byte(0)
	s := int32(sample)
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > ulawClip {
		s = ulawClip
	}
	s += ulawBias

	exponent := byte(7)
	for mask := int32(0x4000); mask != 0 && s&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte(s>>(exponent+3)) & 0x0F
	return ^(sign | (exponent << 4) | mantissa)
}

// Downsample2x halves the sample rate of 16-bit mono PCM by averaging
// adjacent sample pairs. Used to bring 16 kHz provider output down to the
// 8 kHz telephone rate.
func Downsample2x(pcm []byte) []byte {
	samples := len(pcm) / 2
	outSamples := samples / 2
	out := make([]byte, outSamples*2)
	for i := 0; i < outSamples; i++ {
		a := int32(int16(binary.LittleEndian.Uint16(pcm[i*4:])))
		b := int32(int16(binary.LittleEndian.Uint16(pcm[i*4+2:])))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16((a+b)/2)))
	}
	return out
}
