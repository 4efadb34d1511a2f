// Package errorlog writes the human-readable crawl error log.
package errorlog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const timeLayout = "2006-01-02 15:04:05"

// Log appends "[timestamp] line" entries to a file.
type Log struct {
	file   *os.File
	logger *zap.Logger
}

// Open truncates path and writes the log header.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open error log: %w", err)
	}
	if err := writeHeader(f, time.Now()); err != nil {
		f.Close()
		return nil, err
	}
	return &Log{file: f, logger: newLogger(f)}, nil
}

func writeHeader(w io.Writer, now time.Time) error {
	_, err := fmt.Fprintf(w, "SEO Frog Scanner Error Log - %s\n%s\n\n", now.Format(timeLayout), strings.Repeat("-", 80))
	return err
}

func newLogger(w io.Writer) *zap.Logger {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "message",
		LineEnding:       zapcore.DefaultLineEnding,
		ConsoleSeparator: " ",
		EncodeTime: func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
			pae.AppendString("[" + t.Format(timeLayout) + "]")
		},
	})
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), zapcore.DebugLevel)
	return zap.New(core)
}

func (l *Log) Log(line string) {
	l.logger.Error(line)
}

func (l *Log) Close() error {
	_ = l.logger.Sync()
	return l.file.Close()
}
