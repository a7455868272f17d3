package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closableBuffer struct {
	bytes.Buffer
	closed bool
}

func (b *closableBuffer) Close() error {
	b.closed = true
	return nil
}

func TestJSONLSinkWritesOneLinePerRecord(t *testing.T) {
	buf := &closableBuffer{}
	sink := NewWriterSink(buf)

	require.NoError(t, sink.Write(validRecord(1)))
	require.NoError(t, sink.Write(validRecord(2)))
	require.NoError(t, sink.Close())
	assert.True(t, buf.closed)

	scanner := bufio.NewScanner(&buf.Buffer)
	ticks := []int{}
	for scanner.Scan() {
		line := scanner.Bytes()
		require.NoError(t, ValidateLine(line))
		var rec Record
		require.NoError(t, json.Unmarshal(line, &rec))
		ticks = append(ticks, rec.TickIndex)
	}
	assert.Equal(t, []int{1, 2}, ticks)
}

func TestJSONLSinkRejectsInvalidRecordWithoutEmitting(t *testing.T) {
	buf := &closableBuffer{}
	sink := NewWriterSink(buf)

	bad := validRecord(1)
	bad.SchemaVersion = "bogus"
	require.Error(t, sink.Write(bad))
	assert.Zero(t, buf.Len(), "an invalid record must not reach the stream")
}

func TestJSONLSinkRejectsNonIncreasingTicks(t *testing.T) {
	buf := &closableBuffer{}
	sink := NewWriterSink(buf)

	require.NoError(t, sink.Write(validRecord(3)))
	assert.Error(t, sink.Write(validRecord(3)))
	assert.Error(t, sink.Write(validRecord(2)))
	require.NoError(t, sink.Write(validRecord(4)))
}

func TestNewJSONLSinkCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "run.jsonl")

	sink, err := NewJSONLSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Write(validRecord(1)))
	require.NoError(t, sink.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(raw), []byte("\n"))
	require.Len(t, lines, 1)
	assert.NoError(t, ValidateLine(lines[0]))
}

func TestMultiSinkFansOutAndClosesAll(t *testing.T) {
	first, second := &closableBuffer{}, &closableBuffer{}
	sink := NewMultiSink(NewWriterSink(first), NewWriterSink(second))

	require.NoError(t, sink.Write(validRecord(1)))
	assert.Greater(t, first.Len(), 0)
	assert.Greater(t, second.Len(), 0)

	require.NoError(t, sink.Close())
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}
