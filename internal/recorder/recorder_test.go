package recorder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rgoulter/bhtlink/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecord struct {
	fields map[string]interface{}
}

func (f fakeRecord) ID() wire.MessageID    { return wire.GeneralDataPacket }
func (f fakeRecord) Header() wire.Header   { return wire.Header{SeqNo: 7} }
func (f fakeRecord) Fields() map[string]interface{} { return f.fields }

func TestRecordWritesCSVRowWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{Enabled: true, Path: dir}, nil)
	defer r.Close()

	r.Record("general", fakeRecord{fields: map[string]interface{}{"heart_rate": 72.0}})

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "heart_rate")
	assert.Contains(t, string(data), "72.000000")
}

func TestRecordNoOpWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{Enabled: false, Path: dir}, nil)
	defer r.Close()

	r.Record("general", fakeRecord{fields: map[string]interface{}{"heart_rate": 72.0}})

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSetEnabledClosesOpenFiles(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{Enabled: true, Path: dir}, nil)
	r.Record("general", fakeRecord{fields: map[string]interface{}{"x": 1.0}})
	r.SetEnabled(false)
	assert.Empty(t, r.files)
}
