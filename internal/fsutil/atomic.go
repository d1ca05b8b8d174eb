package fsutil

import (
	"fmt"
	"os"

	"cassmem/internal/logging"
)

// AtomicWrite fully replaces path's contents with data, or leaves the previous
// contents intact. Write goes to a sibling temp file which is renamed over the
// target. Directory creation is the caller's responsibility.
func AtomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write temp file for %s: %w", path, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	logging.StoreDebug("Atomic write: %s (%d bytes)", path, len(data))
	return nil
}

// AppendLine appends one newline-terminated record to path in a single write.
// Short O_APPEND writes are atomic, so interleaved appends from concurrent
// processes stay line-intact without the per-file lock.
func AppendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s for append: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return nil
}
