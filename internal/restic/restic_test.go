package restic

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStderr(t *testing.T) {
	tests := []struct {
		stderr string
		want   ErrorKind
	}{
		{"Fatal: unable to open config file: <config/> does not exist", KindRepositoryUninitialized},
		{"Save(<data/...>) returned error: No Space Left On Device", KindDestinationFull},
		{"write /backups/data: no space left on device", KindDestinationFull},
		{"Fatal: wrong password or no key found", KindToolFailure},
		{"", KindToolFailure},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, classifyStderr(tc.stderr), "stderr: %q", tc.stderr)
	}
}

func TestToolError_Error(t *testing.T) {
	err := &ToolError{
		Kind:     KindToolFailure,
		Command:  "restic -r /backups backup /data",
		ExitCode: 1,
		Stderr:   "boom\n",
	}
	assert.Equal(t, `tool failure: "restic -r /backups backup /data" exited with code 1: boom`, err.Error())
}

func TestConsumeStream_MalformedLinesAreDiagnostics(t *testing.T) {
	stream := strings.NewReader(strings.Join([]string{
		`{"message_type":"status","percent_done":0.1,"files_done":1,"total_files":10,"bytes_done":100,"total_bytes":1000}`,
		`warning: unreadable file /data/locked`,
		`{this is not json`,
		`{"message_type":"status","percent_done":0.5,"files_done":5,"total_files":10,"bytes_done":500,"total_bytes":1000}`,
		`{"message_type":"summary","total_files_processed":10,"total_bytes_processed":1000}`,
	}, "\n"))

	var samples []ProgressSample
	var diagnostics []string
	summary, _ := consumeStream(stream,
		func(s ProgressSample) { samples = append(samples, s) },
		func(line string) { diagnostics = append(diagnostics, line) })

	assert.Equal(t, []string{
		"warning: unreadable file /data/locked",
		"{this is not json",
	}, diagnostics)
	require.Len(t, samples, 2)
	assert.Equal(t, uint64(10), summary.FilesProcessed)
	assert.Equal(t, uint64(1000), summary.BytesProcessed)
}

func TestConsumeStream_TotalsFallBackToLastStatus(t *testing.T) {
	stream := strings.NewReader(
		`{"message_type":"status","percent_done":0.9,"files_done":9,"total_files":12,"bytes_done":900,"total_bytes":1200}` + "\n")

	summary, _ := consumeStream(stream, nil, func(string) {})
	assert.Equal(t, uint64(12), summary.FilesProcessed)
	assert.Equal(t, uint64(1200), summary.BytesProcessed)
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestConsumeStream_DrainsStreamAfterOversizedLine(t *testing.T) {
	// a line beyond the scanner's buffer cap stops the scan; the rest of
	// the stream must still be read or the tool blocks on a full pipe
	oversized := strings.Repeat("x", 2<<20)
	rest := strings.Repeat(`{"message_type":"status","percent_done":1.0}`+"\n", 1000)
	reader := &countingReader{r: strings.NewReader(oversized + "\n" + rest)}
	total := len(oversized) + 1 + len(rest)

	var diagnostics []string
	consumeStream(reader, nil, func(line string) { diagnostics = append(diagnostics, line) })

	assert.Equal(t, total, reader.n, "stream must be fully drained")
	require.NotEmpty(t, diagnostics)
	assert.Contains(t, diagnostics[len(diagnostics)-1], "progress stream read error")
}

func TestConsumeStream_KeepsBoundedTail(t *testing.T) {
	var lines []string
	for i := 0; i < tailLines+10; i++ {
		lines = append(lines, `{"message_type":"status","percent_done":1.0}`)
	}
	_, tail := consumeStream(strings.NewReader(strings.Join(lines, "\n")), nil, func(string) {})
	assert.Len(t, tail, tailLines)
}

func TestThrottle_WholePercentAdvances(t *testing.T) {
	thr := newThrottle()

	status := func(pct float64) message {
		return message{MessageType: "status", PercentDone: pct}
	}

	var surfaced []float64
	for _, pct := range []float64{0.051, 0.052, 0.053, 0.06, 0.06, 1.0, 1.0} {
		if sample, ok := thr.advance(status(pct)); ok {
			surfaced = append(surfaced, sample.PercentDone)
		}
	}
	// one per whole-percent advance, 100% exactly once
	assert.Equal(t, []float64{0.051, 0.06, 1.0}, surfaced)
}

func TestThrottle_FirstSampleAlwaysSurfaces(t *testing.T) {
	thr := newThrottle()
	_, ok := thr.advance(message{MessageType: "status", PercentDone: 0})
	assert.True(t, ok)
}

func TestProgressSampleString(t *testing.T) {
	s := ProgressSample{
		FilesDone:   5,
		TotalFiles:  10,
		BytesDone:   512 * 1024,
		TotalBytes:  1024 * 1024,
		PercentDone: 0.5,
	}
	assert.Equal(t, "files 5/10, 512 KiB/1.0 MiB, 50%", s.String())
}
