// Package logger builds the process zap logger: console-encoded lines on
// stdout, teed into a daily log file.
package logger

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	TimeLayout         = "2006-01-02 15:04:05.000"
	defaultLogFilePerm = 0o644
	defaultLogDirPerm  = 0o755
)

type Options struct {
	// Dir receives stdout_<date>.log files. Empty disables file output.
	Dir   string
	Debug bool
}

// DailyFilename returns the log file name for the day of now.
func DailyFilename(now time.Time) string {
	return "stdout_" + now.Format("2006-01-02") + ".log"
}

// DailyWriter appends to the log file of the current day, switching files at
// midnight.
type DailyWriter struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

func NewDailyWriter(dir string) (*DailyWriter, error) {
	if err := os.MkdirAll(dir, defaultLogDirPerm); err != nil {
		return nil, err
	}
	return &DailyWriter{dir: dir, now: time.Now}, nil
}

func (w *DailyWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Join(w.dir, DailyFilename(w.now()))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, defaultLogFilePerm)
	if err != nil {
		return 0, err
	}

	n, writeErr := file.Write(p)
	closeErr := file.Close()
	if writeErr != nil {
		return n, writeErr
	}
	return n, closeErr
}

func (w *DailyWriter) Sync() error { return nil }

// New creates the root logger.
func New(opts Options) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.Debug {
		level.SetLevel(zap.DebugLevel)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(TimeLayout)
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)}
	if opts.Dir != "" {
		writer, err := NewDailyWriter(opts.Dir)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(writer), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	_ = zap.RedirectStdLog(logger)
	return logger, nil
}
