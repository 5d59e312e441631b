package journal

import (
	"encoding/json"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Entry is one persisted journal line.
type Entry struct {
	Time   time.Time `json:"ts"`
	Source string    `json:"source"`
	Kind   string    `json:"kind"`
	Text   string    `json:"text"`
}

// Entry kinds.
const (
	KindEvent = "event"
	KindFault = "fault"
)

// FileRecorder appends entries to a size-rotated JSONL file. A node that
// reboots on watchdog starvation keeps its journal across the reset, so
// the file is the durable counterpart of process logging.
type FileRecorder struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// NewFileRecorder returns a FileRecorder writing to path. Rotation keeps
// a handful of small backups so the journal never exhausts flash-sized
// storage.
func NewFileRecorder(path string) *FileRecorder {
	return &FileRecorder{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    1, // megabytes
			MaxBackups: 3,
		},
	}
}

func (r *FileRecorder) Record(text, source string) {
	r.write(Entry{Source: source, Kind: KindEvent, Text: text})
}

func (r *FileRecorder) RecordFault(err error, source string) {
	if err == nil {
		return
	}
	r.write(Entry{Source: source, Kind: KindFault, Text: err.Error()})
}

func (r *FileRecorder) write(e Entry) {
	e.Time = time.Now().UTC()
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	b = append(b, '\n')
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out.Write(b)
}

// Close releases the underlying file.
func (r *FileRecorder) Close() error {
	return r.out.Close()
}
