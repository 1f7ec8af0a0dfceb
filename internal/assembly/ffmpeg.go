package assembly

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/apresai/briefcast/internal/audio"
	"github.com/apresai/briefcast/internal/tts"
)

// Audio quality constants for consistent output across all FFmpeg operations.
const (
	AudioBitrate    = "128k"
	AudioSampleRate = "44100"
	AudioChannels   = "1"
	AudioCodec      = "libmp3lame"
	AudioQuality    = "2"
	AudioResampler  = "aresample=resampler=soxr"
)

// FFmpeg decodes compressed clips and encodes the final artifact. Decoding
// streams through stdin/stdout so no per-clip files are written.
type FFmpeg struct {
	Bin        string
	ProbeBin   string
	SampleRate int
}

func NewFFmpeg() *FFmpeg {
	return &FFmpeg{Bin: "ffmpeg", ProbeBin: "ffprobe", SampleRate: audio.DefaultSampleRate}
}

// Available reports whether the ffmpeg binary can be found.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.Bin)
	return err == nil
}

// Decode implements tts.Decoder. PCM and WAV are decoded in process; anything
// else is piped through ffmpeg.
func (f *FFmpeg) Decode(ctx context.Context, res tts.AudioResult) (audio.Track, error) {
	switch res.Format {
	case audio.FormatPCM, audio.FormatWAV:
		return tts.BuiltinDecoder{}.Decode(ctx, res)
	}
	return f.decode(ctx, "pipe:0", bytes.NewReader(res.Data))
}

// DecodeFile decodes any container ffmpeg understands.
func (f *FFmpeg) DecodeFile(ctx context.Context, path string) (audio.Track, error) {
	return f.decode(ctx, path, nil)
}

func (f *FFmpeg) decode(ctx context.Context, input string, stdin *bytes.Reader) (audio.Track, error) {
	cmd := exec.CommandContext(ctx, f.Bin,
		"-hide_banner", "-loglevel", "error",
		"-i", input,
		"-f", "s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(f.SampleRate),
		"pipe:1",
	)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var stdout bytes.Buffer
	var stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return audio.Track{}, fmt.Errorf("ffmpeg decode failed: %w\n%s", err, stderr.String())
	}
	return audio.DecodePCM16(stdout.Bytes(), f.SampleRate), nil
}

// EncodeMP3 writes t to output as MP3. The intermediate WAV lives in a
// private temp dir that is removed before returning.
func (f *FFmpeg) EncodeMP3(ctx context.Context, t audio.Track, output string) error {
	tmpDir, err := os.MkdirTemp("", "briefcast-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	wavPath := filepath.Join(tmpDir, "mix.wav")
	if err := audio.EncodeWAVFile(wavPath, t); err != nil {
		return err
	}
	if err := f.ConvertToMP3(ctx, wavPath, output); err != nil {
		return err
	}

	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("output file not created: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("output file is empty")
	}
	return nil
}

// ConvertToMP3 converts a WAV file to MP3 via FFmpeg.
func (f *FFmpeg) ConvertToMP3(ctx context.Context, input, output string) error {
	cmd := exec.CommandContext(ctx, f.Bin,
		"-i", input,
		"-af", AudioResampler,
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
		"-q:a", AudioQuality,
		"-ar", AudioSampleRate,
		"-ac", AudioChannels,
		"-y",
		output,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = nil

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg conversion (wav → mp3) failed: %w\n%s", err, stderr.String())
	}
	return nil
}

// ProbeDuration reads the container duration of an encoded file.
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	out, err := exec.CommandContext(ctx, f.ProbeBin,
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// FormatDuration renders d as m:ss.
func FormatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
