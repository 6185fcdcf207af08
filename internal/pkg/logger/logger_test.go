package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyWriterSwitchesFilesByDay(t *testing.T) {
	dir := t.TempDir()
	w, err := NewDailyWriter(dir)
	require.NoError(t, err)

	day := time.Date(2025, 1, 31, 23, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return day }
	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)

	day = day.Add(2 * time.Minute)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	jan, err := os.ReadFile(filepath.Join(dir, "stdout_2025-01-31.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(jan))

	feb, err := os.ReadFile(filepath.Join(dir, "stdout_2025-02-01.log"))
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(feb))
}

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	log, err := New(Options{Dir: dir})
	require.NoError(t, err)

	log.Named("Test").Info("hello")
	_ = log.Sync()

	data, err := os.ReadFile(filepath.Join(dir, DailyFilename(time.Now())))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Test")
	assert.Contains(t, string(data), "hello")
}
