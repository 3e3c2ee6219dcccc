// Package wavsink persists finalized utterances as RIFF/WAVE PCM files that
// any player or transcription service can open directly.
package wavsink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrSink wraps every failure to persist an utterance. The data is lost;
// nothing here retries.
var ErrSink = errors.New("wavsink: write failed")

// ErrFormat is returned by Decode for input that is not 16-bit PCM WAVE.
var ErrFormat = errors.New("wavsink: unsupported wave format")

// Format is the PCM layout recorded in the header.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Mono16 is the layout the capture pipeline produces.
func Mono16(sampleRate int) Format {
	return Format{SampleRate: sampleRate, Channels: 1, BitsPerSample: 16}
}

func (f Format) validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count %d", f.Channels)
	}
	if f.BitsPerSample != 16 {
		return fmt.Errorf("only 16-bit PCM is supported, got %d", f.BitsPerSample)
	}
	return nil
}

func (f Format) blockAlign() int { return f.Channels * f.BitsPerSample / 8 }

// waveHeader is the canonical 44-byte PCM header.
type waveHeader struct {
	RIFF          [4]byte
	Size          uint32
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

// Encode writes a canonical 44-byte header followed by pcm.
func Encode(w io.Writer, pcm []byte, f Format) error {
	if err := f.validate(); err != nil {
		return err
	}
	if len(pcm)%f.blockAlign() != 0 {
		return fmt.Errorf("pcm length %d is not a multiple of block align %d", len(pcm), f.blockAlign())
	}

	dataSize := uint32(len(pcm))
	hdr := waveHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		Size:          36 + dataSize,
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		Channels:      uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.SampleRate * f.blockAlign()),
		BlockAlign:    uint16(f.blockAlign()),
		BitsPerSample: uint16(f.BitsPerSample),
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      dataSize,
	}

	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}

// Write stores pcm at path. The file is written beside its destination and
// renamed into place, so readers never observe a truncated container.
func Write(path string, pcm []byte, f Format) error {
	if err := f.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrSink, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrSink, err)
	}

	tmp, err := os.CreateTemp(dir, ".utterance-*.wav")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSink, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := Encode(tmp, pcm, f); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %v", ErrSink, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrSink, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrSink, err)
	}
	return nil
}

// Decode reads a 16-bit PCM WAVE stream, skipping chunks other than fmt and
// data.
func Decode(r io.Reader) (Format, []byte, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Format{}, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Format{}, nil, fmt.Errorf("%w: missing RIFF/WAVE magic", ErrFormat)
	}

	var (
		f       Format
		haveFmt bool
	)
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return Format{}, nil, fmt.Errorf("%w: no data chunk: %v", ErrFormat, err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return Format{}, nil, fmt.Errorf("%w: short fmt chunk", ErrFormat)
			}
			if size < 16 || binary.LittleEndian.Uint16(body[0:2]) != 1 {
				return Format{}, nil, fmt.Errorf("%w: not linear PCM", ErrFormat)
			}
			f = Format{
				Channels:      int(binary.LittleEndian.Uint16(body[2:4])),
				SampleRate:    int(binary.LittleEndian.Uint32(body[4:8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(body[14:16])),
			}
			if err := f.validate(); err != nil {
				return Format{}, nil, fmt.Errorf("%w: %v", ErrFormat, err)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, nil, fmt.Errorf("%w: data before fmt", ErrFormat)
			}
			data := make([]byte, size)
			n, err := io.ReadFull(r, data)
			if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
				return Format{}, nil, fmt.Errorf("%w: %v", ErrFormat, err)
			}
			// Streaming writers sometimes leave the size unfilled; keep what is there.
			return f, data[:n], nil
		default:
			skip := int64(size) + int64(size%2)
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return Format{}, nil, fmt.Errorf("%w: %v", ErrFormat, err)
			}
		}
	}
}

// Sink adapts Write to the capture session's sink port, naming files inside
// a base directory.
type Sink struct {
	Dir string
}

// Write implements the capture sink contract.
func (s Sink) Write(path string, pcm []byte, sampleRate int) error {
	if !filepath.IsAbs(path) && s.Dir != "" {
		path = filepath.Join(s.Dir, path)
	}
	return Write(path, pcm, Mono16(sampleRate))
}
