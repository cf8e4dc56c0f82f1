package restic

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// message is one line of restic's --json output. status lines carry live
// progress, the single summary line carries the final totals.
type message struct {
	MessageType         string  `json:"message_type"`
	PercentDone         float64 `json:"percent_done"`
	FilesDone           uint64  `json:"files_done"`
	TotalFiles          uint64  `json:"total_files"`
	BytesDone           uint64  `json:"bytes_done"`
	TotalBytes          uint64  `json:"total_bytes"`
	TotalFilesProcessed uint64  `json:"total_files_processed"`
	TotalBytesProcessed uint64  `json:"total_bytes_processed"`
}

// ProgressSample is one decoded unit of streamed backup status. Samples are
// consumed to render progress and then dropped; nothing persists them.
type ProgressSample struct {
	FilesDone   uint64
	TotalFiles  uint64
	BytesDone   uint64
	TotalBytes  uint64
	PercentDone float64
}

func (s ProgressSample) String() string {
	return fmt.Sprintf("files %d/%d, %s/%s, %.0f%%",
		s.FilesDone, s.TotalFiles,
		humanize.IBytes(s.BytesDone), humanize.IBytes(s.TotalBytes),
		s.PercentDone*100)
}

// Summary holds the totals of one completed backup invocation.
type Summary struct {
	FilesProcessed uint64
	BytesProcessed uint64
}

// throttle bounds progress output on long transfers: a sample passes only
// when the whole-percent completion has advanced since the last one.
type throttle struct {
	lastPercent int
}

func newThrottle() *throttle {
	return &throttle{lastPercent: -1}
}

func (t *throttle) advance(msg message) (ProgressSample, bool) {
	pct := int(msg.PercentDone * 100)
	if pct > 100 {
		pct = 100
	}
	if pct <= t.lastPercent {
		return ProgressSample{}, false
	}
	t.lastPercent = pct
	return ProgressSample{
		FilesDone:   msg.FilesDone,
		TotalFiles:  msg.TotalFiles,
		BytesDone:   msg.BytesDone,
		TotalBytes:  msg.TotalBytes,
		PercentDone: msg.PercentDone,
	}, true
}
