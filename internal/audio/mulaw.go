// Package audio converts Twilio telephony audio into the 16 kHz WAV payloads
// expected by the transcription and anti-spoof services.
package audio

import (
	"encoding/base64"
	"fmt"
)

const (
	muLawBias = 0x84
	muLawClip = 32635
)

// DecodeMuLaw expands one G.711 mu-law byte to a linear 16-bit sample.
func DecodeMuLaw(b byte) int16 {
	u := ^b
	t := (int32(u&0x0F) << 3) + muLawBias
	t <<= (u & 0x70) >> 4
	if u&0x80 != 0 {
		return int16(muLawBias - t)
	}
	return int16(t - muLawBias)
}

// EncodeMuLaw compresses a linear 16-bit sample to one mu-law byte.
func EncodeMuLaw(s int16) byte {
	v := int32(s)
	var sign byte
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > muLawClip {
		v = muLawClip
	}
	v += muLawBias

	exp := byte(7)
	for mask := int32(0x4000); v&mask == 0 && exp > 0; mask >>= 1 {
		exp--
	}
	mant := byte(v>>(exp+3)) & 0x0F
	return ^(sign | exp<<4 | mant)
}

// DecodeMuLawBytes decodes a whole frame in one pass.
func DecodeMuLawBytes(p []byte) []int16 {
	out := make([]int16, len(p))
	for i, b := range p {
		out[i] = DecodeMuLaw(b)
	}
	return out
}

// DecodeMediaPayload decodes a base64 Twilio media payload into 8 kHz samples.
func DecodeMediaPayload(payload string) ([]int16, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode media payload: %w", err)
	}
	return DecodeMuLawBytes(raw), nil
}
