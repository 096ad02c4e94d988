package sim

import (
	"encoding/csv"
	"errors"
	"fmt"
	"path"
	"strconv"

	"github.com/go-git/go-billy/v5"
	"github.com/sirupsen/logrus"
)

// ErrSessionClosed is returned when the metrics log is used after Close.
var ErrSessionClosed = errors.New("session already closed")

// LogHeader is the fixed first row of the metrics log.
var LogHeader = []string{
	"SOLVER",
	"FLUID_PAIRING",
	"RESOLUTION",
	"time",
	"max_error_velocity",
	"mean_absolute_error_velocity",
	"root_mean_square_deviation_velocity",
}

// Session owns the metrics log for the lifetime of a run. It is opened once at
// Init and closed once at termination. Every row is flushed as it is written.
type Session struct {
	name   string
	file   billy.File
	w      *csv.Writer
	rows   int
	closed bool
}

// OpenSession creates (truncating) the metrics log on fs.
func OpenSession(fs billy.Filesystem, name string) (*Session, error) {
	if dir := path.Dir(name); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory %s: %w", dir, err)
		}
	}
	f, err := fs.Create(name)
	if err != nil {
		return nil, fmt.Errorf("open metrics log %s: %w", name, err)
	}
	logrus.WithField("log", name).Info("metrics log opened")
	return &Session{name: name, file: f, w: csv.NewWriter(f)}, nil
}

// Name returns the log's path on the artifact filesystem.
func (s *Session) Name() string { return s.name }

// Rows returns the number of data rows written, excluding the header.
func (s *Session) Rows() int { return s.rows }

// WriteHeader writes LogHeader.
func (s *Session) WriteHeader() error {
	return s.writeRow(LogHeader)
}

// WriteRecord appends one data row.
func (s *Session) WriteRecord(r ErrorRecord) error {
	if err := s.writeRow(r.Fields()); err != nil {
		return err
	}
	s.rows++
	return nil
}

func (s *Session) writeRow(row []string) error {
	if s.closed {
		return ErrSessionClosed
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("write %s: %w", s.name, err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", s.name, err)
	}
	return nil
}

// Close flushes and releases the log. A second call returns ErrSessionClosed
// without touching the file.
func (s *Session) Close() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	s.w.Flush()
	werr := s.w.Error()
	cerr := s.file.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return fmt.Errorf("close %s: %w", s.name, err)
	}
	logrus.WithFields(logrus.Fields{"log": s.name, "rows": s.rows}).Info("metrics log closed")
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
