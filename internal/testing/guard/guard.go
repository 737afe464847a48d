// Package guard switches the process into test mode when imported, so binaries
// linked into tests skip their network side effects.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("MAINTRACK_TEST_MODE") == "" {
			_ = os.Setenv("MAINTRACK_TEST_MODE", "1")
		}
	})
}
