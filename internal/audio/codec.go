package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNotWAV is returned when DecodeWAV is given something other than a RIFF/WAVE stream.
var ErrNotWAV = errors.New("not a valid WAV stream")

// Format is the container of an encoded clip.
type Format string

const (
	FormatMP3     Format = "mp3"
	FormatWAV     Format = "wav"
	FormatPCM     Format = "pcm" // raw s16le mono
	FormatUnknown Format = ""
)

// Sniff guesses the container from the leading bytes.
func Sniff(data []byte) Format {
	switch {
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case len(data) >= 3 && string(data[:3]) == "ID3":
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	}
	return FormatUnknown
}

// DecodePCM16 interprets data as signed 16-bit little-endian mono samples.
// A trailing odd byte is ignored.
func DecodePCM16(data []byte, rate int) Track {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[2*i:]))
		out[i] = float32(v) / 32768
	}
	return Track{SampleRate: rate, Samples: out}
}

// EncodePCM16 renders t as signed 16-bit little-endian mono samples.
func EncodePCM16(t Track) []byte {
	out := make([]byte, 2*len(t.Samples))
	for i, s := range t.Samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(toInt16(s)))
	}
	return out
}

// DecodeWAV reads a WAV stream and downmixes it to mono.
func DecodeWAV(r io.ReadSeeker) (Track, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Track{}, ErrNotWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Track{}, fmt.Errorf("read WAV PCM: %w", err)
	}
	if buf.SourceBitDepth == 0 {
		buf.SourceBitDepth = int(dec.BitDepth)
	}
	fb := buf.AsFloat32Buffer()

	channels := 1
	if fb.Format != nil && fb.Format.NumChannels > 0 {
		channels = fb.Format.NumChannels
	}
	frames := len(fb.Data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += fb.Data[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return Track{SampleRate: int(dec.SampleRate), Samples: out}, nil
}

// DecodeWAVBytes is DecodeWAV over an in-memory buffer.
func DecodeWAVBytes(data []byte) (Track, error) {
	return DecodeWAV(bytes.NewReader(data))
}

// EncodeWAVFile writes t to path as 16-bit mono WAV.
func EncodeWAVFile(path string, t Track) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	data := make([]int, len(t.Samples))
	for i, s := range t.Samples {
		data[i] = int(toInt16(s))
	}

	enc := wav.NewEncoder(f, t.SampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: t.SampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize WAV: %w", err)
	}
	return nil
}

func toInt16(s float32) int16 {
	s = clamp(s)
	return int16(s * 32767)
}
