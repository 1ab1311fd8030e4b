package logutil

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

const (
	logFileName  = "relic_keeper.log"
	maxSizeBytes = 10 * 1024 * 1024 // 10 MB
	maxArchives  = 3
)

var (
	sinkMu sync.RWMutex
	sink   func(level, message string)

	debugEnabled bool
)

// Setup enables file logging with basic size-based rotation (10MB, max 3 files).
// When disabled, logs are discarded to keep stdout clean for the console UI.
func Setup(enableFileLogging, debug bool) {
	debugEnabled = debug
	if !enableFileLogging {
		log.SetOutput(io.Discard)
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		return
	}
	rotateIfNeeded()
	f, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		return
	}
	log.SetOutput(&rotatingWriter{f: f})
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

// SetSink registers a callback receiving every leveled message, used to
// mirror log lines onto the console status display. Pass nil to clear.
func SetSink(fn func(level, message string)) {
	sinkMu.Lock()
	sink = fn
	sinkMu.Unlock()
}

func emit(level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Output(3, fmt.Sprintf("%s: %s", level, msg))

	sinkMu.RLock()
	fn := sink
	sinkMu.RUnlock()
	if fn != nil {
		fn(level, msg)
	}
}

func Debugf(format string, args ...interface{}) {
	if !debugEnabled {
		return
	}
	emit("DEBUG", format, args...)
}

func Infof(format string, args ...interface{})    { emit("INFO", format, args...) }
func Successf(format string, args ...interface{}) { emit("SUCCESS", format, args...) }
func Warningf(format string, args ...interface{}) { emit("WARNING", format, args...) }
func Errorf(format string, args ...interface{})   { emit("ERROR", format, args...) }

type rotatingWriter struct{ f *os.File }

func (w *rotatingWriter) Write(p []byte) (int, error) {
	// naive rotation check per write
	if st, err := w.f.Stat(); err == nil && st.Size()+int64(len(p)) > maxSizeBytes {
		_ = w.f.Close()
		rotateIfNeeded()
		nf, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return 0, err
		}
		w.f = nf
	}
	return w.f.Write(p)
}

func rotateIfNeeded() {
	// If base exceeds max size, rotate: .1, .2, .3 (oldest discarded)
	if st, err := os.Stat(logFileName); err == nil && st.Size() > maxSizeBytes {
		_ = os.Remove(archiveName(maxArchives))
		for i := maxArchives - 1; i >= 1; i-- {
			_ = os.Rename(archiveName(i), archiveName(i+1))
		}
		_ = os.Rename(logFileName, archiveName(1))
	}
}

func archiveName(n int) string { return filepath.Join(".", fmt.Sprintf("%s.%d", logFileName, n)) }
