package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const wavHeaderSize = 44

// EncodeWAV wraps 16-bit mono PCM samples in a RIFF/WAVE container.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataSize := len(samples) * 2
	var b bytes.Buffer
	b.Grow(wavHeaderSize + dataSize)

	b.WriteString("RIFF")
	le32(&b, uint32(36+dataSize))
	b.WriteString("WAVE")

	b.WriteString("fmt ")
	le32(&b, 16)                   // chunk size
	le16(&b, 1)                    // PCM
	le16(&b, 1)                    // mono
	le32(&b, uint32(sampleRate))   // sample rate
	le32(&b, uint32(sampleRate*2)) // byte rate
	le16(&b, 2)                    // block align
	le16(&b, 16)                   // bits per sample

	b.WriteString("data")
	le32(&b, uint32(dataSize))
	_ = binary.Write(&b, binary.LittleEndian, samples)
	return b.Bytes()
}

// WAVInfo describes a decoded WAV header.
type WAVInfo struct {
	SampleRate int
	Channels   int
	Bits       int
	Samples    int
}

// ParseWAVHeader reads the canonical 44-byte header written by EncodeWAV
// and espeak-ng.
func ParseWAVHeader(data []byte) (WAVInfo, error) {
	if len(data) < wavHeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return WAVInfo{}, fmt.Errorf("not a WAV stream")
	}
	if string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		return WAVInfo{}, fmt.Errorf("unsupported WAV layout")
	}
	info := WAVInfo{
		Channels:   int(binary.LittleEndian.Uint16(data[22:24])),
		SampleRate: int(binary.LittleEndian.Uint32(data[24:28])),
		Bits:       int(binary.LittleEndian.Uint16(data[34:36])),
	}
	dataSize := int(binary.LittleEndian.Uint32(data[40:44]))
	if info.Channels == 0 || info.Bits == 0 {
		return WAVInfo{}, fmt.Errorf("invalid WAV format chunk")
	}
	info.Samples = dataSize / (info.Channels * info.Bits / 8)
	return info, nil
}

func le16(b *bytes.Buffer, v uint16) {
	_ = binary.Write(b, binary.LittleEndian, v)
}

func le32(b *bytes.Buffer, v uint32) {
	_ = binary.Write(b, binary.LittleEndian, v)
}
