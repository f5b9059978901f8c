// internal/completion/detector.go
package completion

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"
)

// AwaitCompletion polls the artifact named by pattern inside dir until its
// content contains marker or timeout elapses. pattern may be a glob relative
// to dir; any matching file counts. Only pattern is interpreted as a glob, so
// dir may contain glob metacharacters.
//
// The first check happens immediately, then every pollInterval. A missing,
// empty, partially written or unreadable artifact is simply not complete yet.
// The result is false only once timeout has elapsed, and no later than
// timeout plus one poll interval. A cancelled ctx also yields false.
func AwaitCompletion(ctx context.Context, dir, pattern, marker string, timeout, pollInterval time.Duration) bool {
	if pollInterval <= 0 {
		pollInterval = timeout
	}
	deadline := time.Now().Add(timeout)
	for {
		if Finalized(dir, pattern, marker) {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		wait := pollInterval
		if remaining < wait {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

// Finalized performs a single completion check.
func Finalized(dir, pattern, marker string) bool {
	for _, f := range matches(dir, pattern) {
		data, err := os.ReadFile(f)
		if err != nil || len(data) == 0 {
			continue
		}
		if bytes.Contains(data, []byte(marker)) {
			return true
		}
	}
	return false
}

// FirstMatch resolves pattern, which may be a glob relative to dir, to the
// first matching regular file in lexical order.
func FirstMatch(dir, pattern string) (string, error) {
	files := matches(dir, pattern)
	if len(files) == 0 {
		return "", fmt.Errorf("no report matches %s in %s", pattern, dir)
	}
	return files[0], nil
}

func matches(dir, pattern string) []string {
	pattern = path.Clean(filepath.ToSlash(pattern))
	names, err := fs.Glob(os.DirFS(dir), pattern)
	if err != nil {
		// Malformed pattern: treat it as a literal name.
		names = []string{pattern}
	}
	files := make([]string, 0, len(names))
	for _, name := range names {
		files = append(files, filepath.Join(dir, filepath.FromSlash(name)))
	}
	sort.Strings(files)
	out := files[:0]
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil || info.IsDir() {
			continue
		}
		out = append(out, f)
	}
	return out
}
