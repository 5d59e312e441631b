package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type captureRecorder struct {
	events []string
	faults []string
}

func (c *captureRecorder) Record(text, source string) {
	c.events = append(c.events, source+"/"+text)
}

func (c *captureRecorder) RecordFault(err error, source string) {
	c.faults = append(c.faults, source+"/"+err.Error())
}

func TestMultiFansOut(t *testing.T) {
	a := &captureRecorder{}
	b := &captureRecorder{}
	m := Multi(a, b)
	m.Record("rails up", "boot")
	m.RecordFault(errors.New("no reply"), "modem")
	for _, c := range []*captureRecorder{a, b} {
		require.Equal(t, []string{"boot/rails up"}, c.events)
		require.Equal(t, []string{"modem/no reply"}, c.faults)
	}
}

func TestFileRecorderWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	r := NewFileRecorder(path)
	defer r.Close()

	r.Record("Reset cause: PWRON_RESET", "boot")
	r.RecordFault(errors.New("address query timed out"), "modem")
	r.RecordFault(nil, "modem")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, sc.Err())

	require.Len(t, entries, 2)
	require.Equal(t, KindEvent, entries[0].Kind)
	require.Equal(t, "boot", entries[0].Source)
	require.Equal(t, "Reset cause: PWRON_RESET", entries[0].Text)
	require.False(t, entries[0].Time.IsZero())
	require.Equal(t, KindFault, entries[1].Kind)
	require.Equal(t, "address query timed out", entries[1].Text)
}

func TestFileRecorderSwallowsWriteErrors(t *testing.T) {
	// Parent path is a file, so the rotated log can never be created.
	parent := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0o644))
	r := NewFileRecorder(filepath.Join(parent, "journal.log"))
	defer r.Close()

	require.NotPanics(t, func() {
		r.Record("ignored", "boot")
		r.RecordFault(errors.New("ignored"), "boot")
	})
}
