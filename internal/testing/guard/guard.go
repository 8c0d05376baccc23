package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CIVITAS_TEST_MODE") == "" {
			_ = os.Setenv("CIVITAS_TEST_MODE", "1")
		}
	})
}
