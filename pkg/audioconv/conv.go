// Package audioconv decodes wav, mp3 and ogg (vorbis or opus) clips into the
// 16 kHz mono PCM the transcriber expects.
package audioconv

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

// SampleRate is the rate every decoder resamples to.
const SampleRate = 16000

const opusRate = 48000

type Options struct {
	MaxSamples int
}

var ErrUnsupported = errors.New("unsupported audio format")

// clip is decoded audio before normalization: interleaved samples at the
// source rate.
type clip struct {
	pcm      []float32
	rate     int
	channels int
}

type decoder func(r io.ReadSeeker) (clip, error)

func ConvertFileToPCM16k(ctx context.Context, path string, opt Options) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(ctx, f, filepath.Ext(path), opt)
}

// DecodeBytes decodes an in-memory clip, e.g. an audio payload from the bus.
// kind is a file extension or mime subtype hint and may be empty.
func DecodeBytes(ctx context.Context, data []byte, kind string, opt Options) ([]float32, error) {
	return Decode(ctx, bytes.NewReader(data), kind, opt)
}

// Decode returns 16 kHz mono samples. The container is chosen from kind and,
// failing that, from the stream's magic bytes.
func Decode(_ context.Context, r io.ReadSeeker, kind string, opt Options) ([]float32, error) {
	dec, err := pick(r, kind)
	if err != nil {
		return nil, err
	}

	c, err := dec(r)
	if err != nil {
		return nil, err
	}
	return opt.limit(normalize(c)), nil
}

func pick(r io.ReadSeeker, kind string) (decoder, error) {
	kind = strings.TrimPrefix(strings.ToLower(kind), ".")
	kind = strings.TrimPrefix(kind, "audio/")

	switch kind {
	case "wav", "wave", "x-wav":
		return decodeWAV, nil
	case "mp3", "mpeg":
		return decodeMP3, nil
	case "ogg", "oga", "opus":
		return decodeOgg, nil
	}

	magic := make([]byte, 4)
	n, _ := io.ReadFull(r, magic)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	switch {
	case n == 4 && string(magic) == "RIFF":
		return decodeWAV, nil
	case n == 4 && string(magic) == "OggS":
		return decodeOgg, nil
	case n >= 3 && (string(magic[:3]) == "ID3" || magic[0] == 0xFF && magic[1]&0xE0 == 0xE0):
		return decodeMP3, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, kind)
	}
}

// decodeOgg tries Vorbis first and falls back to Opus.
func decodeOgg(r io.ReadSeeker) (clip, error) {
	c, verr := decodeVorbis(r)
	if verr == nil {
		return c, nil
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return clip{}, err
	}
	c, err := decodeOpus(r)
	if err != nil {
		return clip{}, fmt.Errorf("ogg is neither vorbis (%v) nor opus: %w", verr, err)
	}
	return c, nil
}

func decodeWAV(r io.ReadSeeker) (clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return clip{}, errors.New("invalid wav")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return clip{}, fmt.Errorf("read wav: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return clip{}, errors.New("empty wav")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}

	c := clip{pcm: intsToFloat(buf.Data, depth), rate: 44100, channels: 1}
	if f := buf.Format; f != nil {
		if f.NumChannels > 0 {
			c.channels = f.NumChannels
		}
		if f.SampleRate > 0 {
			c.rate = f.SampleRate
		}
	}
	return c, nil
}

// decodeMP3 reads go-mp3's output, which is always 16-bit little endian
// stereo.
func decodeMP3(r io.ReadSeeker) (clip, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return clip{}, fmt.Errorf("open mp3: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return clip{}, fmt.Errorf("read mp3: %w", err)
	}
	samples := make([]int16, len(raw)/2)
	if err := binary.Read(bytes.NewReader(raw[:len(samples)*2]), binary.LittleEndian, samples); err != nil {
		return clip{}, err
	}

	rate := dec.SampleRate()
	if rate <= 0 {
		rate = 44100
	}
	return clip{pcm: int16sToFloat(samples), rate: rate, channels: 2}, nil
}

func decodeVorbis(r io.ReadSeeker) (clip, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return clip{}, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return clip{}, errors.New("invalid ogg/vorbis stream")
	}
	return clip{pcm: pcm, rate: format.SampleRate, channels: format.Channels}, nil
}

// decodeOpus reads 48 kHz int16 frames until EOF.
func decodeOpus(r io.ReadSeeker) (clip, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return clip{}, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	c := clip{rate: opusRate, channels: ch}
	buf := make([]int16, opusRate/2*ch)
	for {
		n, err := dec.Read(buf) // samples per channel
		if n > 0 {
			c.pcm = append(c.pcm, int16sToFloat(buf[:n*ch])...)
		}
		if errors.Is(err, io.EOF) {
			return c, nil
		}
		if err != nil {
			return clip{}, fmt.Errorf("read opus: %w", err)
		}
	}
}

func (o Options) limit(x []float32) []float32 {
	if o.MaxSamples > 0 && len(x) > o.MaxSamples {
		return x[:o.MaxSamples]
	}
	return x
}
