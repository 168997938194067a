package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// SampleRate8k is the Twilio media stream rate.
	SampleRate8k = 8000
	// SampleRate16k is the rate of every WAV handed to downstream services.
	SampleRate16k = 16000

	wavHeaderSize = 44
)

// WAVHeader is the canonical 44-byte RIFF header for mono 16-bit PCM.
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// EncodeWAV wraps mono 16-bit samples in a RIFF/WAVE container.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	const numChannels, bitsPerSample = 1, 16
	dataSize := uint32(len(samples) * 2)
	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * numChannels * bitsPerSample / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("write wav header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("write wav samples: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWAV parses a container produced by EncodeWAV.
func DecodeWAV(data []byte) ([]int16, int, error) {
	if len(data) < wavHeaderSize {
		return nil, 0, fmt.Errorf("wav too short: need %d bytes, got %d", wavHeaderSize, len(data))
	}
	var h WAVHeader
	if err := binary.Read(bytes.NewReader(data[:wavHeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, 0, fmt.Errorf("read wav header: %w", err)
	}
	switch {
	case string(h.ChunkID[:]) != "RIFF" || string(h.Format[:]) != "WAVE":
		return nil, 0, fmt.Errorf("invalid wav: missing RIFF/WAVE")
	case string(h.Subchunk1ID[:]) != "fmt " || string(h.Subchunk2ID[:]) != "data":
		return nil, 0, fmt.Errorf("invalid wav: unexpected chunk layout")
	case h.AudioFormat != 1 || h.BitsPerSample != 16 || h.NumChannels != 1:
		return nil, 0, fmt.Errorf("unsupported wav: format=%d bits=%d channels=%d", h.AudioFormat, h.BitsPerSample, h.NumChannels)
	}
	payload := data[wavHeaderSize:]
	if uint32(len(payload)) < h.Subchunk2Size {
		return nil, 0, fmt.Errorf("wav truncated: header says %d bytes, have %d", h.Subchunk2Size, len(payload))
	}
	samples := make([]int16, h.Subchunk2Size/2)
	if err := binary.Read(bytes.NewReader(payload[:h.Subchunk2Size]), binary.LittleEndian, samples); err != nil {
		return nil, 0, fmt.Errorf("read wav samples: %w", err)
	}
	return samples, int(h.SampleRate), nil
}

// ChunkWAV upsamples 8 kHz samples and encodes them as a 16 kHz WAV.
func ChunkWAV(samples8k []int16) ([]byte, error) {
	return EncodeWAV(Upsample2x(samples8k), SampleRate16k)
}
