package wavsink

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeHeader(t *testing.T) {
	pcm := make([]byte, 960)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, pcm, Mono16(16000)))

	out := buf.Bytes()
	require.Len(t, out, 44+960)
	assert.Equal(t, "RIFF", string(out[0:4]))
	assert.Equal(t, uint32(36+960), binary.LittleEndian.Uint32(out[4:8]))
	assert.Equal(t, "WAVE", string(out[8:12]))
	assert.Equal(t, "fmt ", string(out[12:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[20:22]), "PCM")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[22:24]), "mono")
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(out[24:28]))
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(out[28:32]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(out[32:34]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(out[34:36]))
	assert.Equal(t, "data", string(out[36:40]))
	assert.Equal(t, uint32(960), binary.LittleEndian.Uint32(out[40:44]))
}

func TestEncodeRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Encode(&buf, make([]byte, 3), Mono16(16000)))
	assert.Error(t, Encode(&buf, nil, Format{SampleRate: 16000, Channels: 1, BitsPerSample: 8}))
	assert.Error(t, Encode(&buf, nil, Mono16(0)))
}

func TestWriteThenDecode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "utt.wav")
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	require.NoError(t, Write(path, pcm, Mono16(16000)))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	format, data, err := Decode(f)
	require.NoError(t, err)
	assert.Equal(t, Mono16(16000), format)
	assert.Equal(t, pcm, data)

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteReportsSinkError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// Parent path is a regular file
	err := Write(filepath.Join(blocker, "utt.wav"), []byte{0, 0}, Mono16(16000))
	assert.ErrorIs(t, err, ErrSink)
}

func TestDecodeSkipsUnknownChunks(t *testing.T) {
	var body bytes.Buffer
	body.WriteString("WAVE")
	body.WriteString("LIST")
	binary.Write(&body, binary.LittleEndian, uint32(3))
	body.Write([]byte{9, 9, 9, 0}) // odd chunk plus pad byte
	var encoded bytes.Buffer
	require.NoError(t, Encode(&encoded, []byte{5, 0}, Mono16(8000)))
	body.Write(encoded.Bytes()[12:])

	var file bytes.Buffer
	file.WriteString("RIFF")
	binary.Write(&file, binary.LittleEndian, uint32(body.Len()))
	file.Write(body.Bytes())

	format, data, err := Decode(&file)
	require.NoError(t, err)
	assert.Equal(t, 8000, format.SampleRate)
	assert.Equal(t, []byte{5, 0}, data)
}

func TestDecodeRejectsNonWave(t *testing.T) {
	_, _, err := Decode(bytes.NewReader([]byte("not a wave file at all")))
	assert.ErrorIs(t, err, ErrFormat)
}

func TestSinkJoinsDir(t *testing.T) {
	dir := t.TempDir()
	s := Sink{Dir: dir}
	require.NoError(t, s.Write("a.wav", []byte{0, 0}, 16000))
	_, err := os.Stat(filepath.Join(dir, "a.wav"))
	assert.NoError(t, err)
}
