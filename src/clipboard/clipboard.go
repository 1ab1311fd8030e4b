// Package clipboard is a thin guard around the system clipboard, used
// to export session summaries.
package clipboard

import (
	"sync"

	"golang.design/x/clipboard"
)

var writeMu sync.Mutex

func Init() error {
	return clipboard.Init()
}

// Write performs a mutex-guarded clipboard write; the stats reporter
// and the session finisher may both export concurrently.
func Write(text string) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
