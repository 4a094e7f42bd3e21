package logstore

import (
	"bufio"
	"encoding/json"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/kbukum/recflow/errors"
	"github.com/kbukum/recflow/logger"
	"github.com/kbukum/recflow/status"
)

// DirName is the log directory name under the data root.
const DirName = "LOG"

// Lines longer than maxLineSize are skipped by Read.
const maxLineSize = 1 << 20

// MaxMessage is the longest message Status keeps. Longer messages are cut
// and marked with TruncatedSuffix.
const MaxMessage = 64 << 10

// TruncatedSuffix ends a message cut by Truncate.
const TruncatedSuffix = " …[truncated]"

// Truncate cuts msg to at most MaxMessage bytes on a rune boundary.
func Truncate(msg string) string {
	if len(msg) <= MaxMessage {
		return msg
	}
	cut := MaxMessage - len(TruncatedSuffix)
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + TruncatedSuffix
}

// pathLocks serializes writers of the same file within the process.
var pathLocks sync.Map

func lockFor(path string) *sync.Mutex {
	mu, _ := pathLocks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Store reads and writes per-record log files in one directory.
type Store struct {
	dir string
	now func() time.Time
}

// New creates the log directory if needed and returns a Store over it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.IO("create log dir", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return &Store{dir: abs, now: time.Now}, nil
}

// Dir returns the log directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the log file of a record.
func (s *Store) Path(recordID string) string {
	return filepath.Join(s.dir, recordID+".log")
}

// Fields are fixed on every entry a Writer produces.
type Fields struct {
	Task      string
	Modality  string
	StepLabel string
	RunID     string
}

// Writer appends entries for exactly one record.
type Writer struct {
	file     *os.File
	mu       *sync.Mutex
	zl       zerolog.Logger
	recordID string
	once     sync.Once
	closeErr error
}

// Open opens the record's log file for appending.
func (s *Store) Open(recordID string, f Fields) (*Writer, error) {
	if recordID == "" {
		return nil, errors.InvalidInput("record_id", "must not be empty")
	}
	path := s.Path(recordID)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.IO("open log", path, err)
	}
	w := &Writer{file: file, mu: lockFor(path), recordID: recordID}
	now := s.now
	w.zl = zerolog.New(w).Hook(zerolog.HookFunc(func(e *zerolog.Event, _ zerolog.Level, _ string) {
		e.Str(logger.FieldTime, now().UTC().Format(time.RFC3339Nano))
	})).With().
		Str(logger.FieldRecordID, recordID).
		Str(logger.FieldTask, f.Task).
		Str(logger.FieldModality, f.Modality).
		Str(logger.FieldStepLabel, f.StepLabel).
		Str(logger.FieldRunID, f.RunID).
		Logger()
	return w, nil
}

// Write implements io.Writer. zerolog hands over one complete line per call.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Write(p)
}

// Status appends a status entry.
func (w *Writer) Status(code status.Code, msg string) {
	level := zerolog.InfoLevel
	if code == status.Error {
		level = zerolog.ErrorLevel
	}
	w.zl.WithLevel(level).
		Str(logger.FieldOrigin, OriginStatus).
		Int(logger.FieldStepStatus, int(code)).
		Msg(Truncate(msg))
}

// Logger returns a logger for script output. Its entries carry no status.
func (w *Writer) Logger() *logger.Logger {
	return logger.FromZerolog(w.zl.With().Str(logger.FieldOrigin, OriginScript).Logger(), "")
}

// RecordID returns the record this writer is bound to.
func (w *Writer) RecordID() string { return w.recordID }

// Close closes the file. It is safe to call more than once.
func (w *Writer) Close() error {
	w.once.Do(func() {
		w.closeErr = w.file.Close()
	})
	return w.closeErr
}

// Read returns the record's entries matching f, newest first. Entries with
// equal timestamps keep reverse file order. A missing file yields no entries.
func (s *Store) Read(recordID string, f Filter) ([]Entry, error) {
	path := s.Path(recordID)
	file, err := os.Open(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.IO("read log", path, err)
	}
	defer file.Close()

	var entries []Entry
	r := bufio.NewReaderSize(file, 64<<10)
	for {
		line, err := readLine(r)
		var e Entry
		if len(line) > 0 && json.Unmarshal(line, &e) == nil && e.RecordID == recordID && f.match(e) {
			entries = append(entries, e)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.IO("read log", path, err)
		}
	}

	slices.Reverse(entries)
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return b.Time.Compare(a.Time)
	})
	return entries, nil
}

// readLine returns the next line of r. A line longer than maxLineSize is
// consumed and returned empty.
func readLine(r *bufio.Reader) ([]byte, error) {
	var (
		line     []byte
		overlong bool
	)
	for {
		chunk, err := r.ReadSlice('\n')
		if !overlong {
			if len(line)+len(chunk) > maxLineSize {
				overlong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if err != bufio.ErrBufferFull {
			return line, err
		}
	}
}

// LatestStatus returns the newest status entry code matching f.
// Read failures are reported as no entry.
func (s *Store) LatestStatus(recordID string, f Filter) (status.Code, bool) {
	f.StatusOnly = true
	entries, err := s.Read(recordID, f)
	if err != nil || len(entries) == 0 {
		return status.Init, false
	}
	return *entries[0].StepStatus, true
}
