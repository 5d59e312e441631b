// Package journal preserves one-line operational events so the cause of a
// reset can be reconstructed after the fact.
package journal

import (
	"github.com/golang/glog"
)

// Recorder accepts operational events and faults. Implementations are
// best-effort and never fail the caller: an entry that cannot be written
// is dropped.
type Recorder interface {
	Record(text, source string)
	RecordFault(err error, source string)
}

// Glog returns a Recorder backed by process logging.
func Glog() Recorder {
	return glogRecorder{}
}

type glogRecorder struct{}

func (glogRecorder) Record(text, source string) {
	glog.Infof("[%s] %s", source, text)
}

func (glogRecorder) RecordFault(err error, source string) {
	glog.Errorf("[%s] fault: %v", source, err)
}

// Discard returns a Recorder that drops every entry.
func Discard() Recorder {
	return discard{}
}

type discard struct{}

func (discard) Record(string, string)     {}
func (discard) RecordFault(error, string) {}

// Multi fans every entry out to all of recs.
func Multi(recs ...Recorder) Recorder {
	return multi(recs)
}

type multi []Recorder

func (m multi) Record(text, source string) {
	for _, r := range m {
		r.Record(text, source)
	}
}

func (m multi) RecordFault(err error, source string) {
	for _, r := range m {
		r.RecordFault(err, source)
	}
}
