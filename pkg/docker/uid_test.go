package docker

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
)

func TestUIDFormat(t *testing.T) {
	id := uid()
	if !strings.HasPrefix(id, fmt.Sprintf("%d-", os.Getpid())) {
		t.Errorf("uid %q does not start with pid", id)
	}
}

func TestUIDUnique(t *testing.T) {
	const n = 64
	ids := make(chan string, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- uid()
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate uid %q", id)
		}
		seen[id] = true
	}
}
