package docker

import (
	"fmt"
	"os"
	"sync/atomic"
)

var uidCounter atomic.Uint64

// uid returns a name component unique within this machine for the process
// lifetime: the pid plus a process-wide monotonically increasing counter.
func uid() string {
	return fmt.Sprintf("%d-%d", os.Getpid(), uidCounter.Add(1))
}
