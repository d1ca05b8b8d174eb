package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DataRoot returns the per-user data root, honoring CASSMEM_HOME.
// Default: ~/.cass-memory
func DataRoot() string {
	if v := os.Getenv("CASSMEM_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cass-memory"
	}
	return filepath.Join(home, ".cass-memory")
}

// GlobalPlaybookPath resolves the main playbook file.
func (c *Config) GlobalPlaybookPath() string {
	if c.PlaybookPath != "" {
		return c.PlaybookPath
	}
	return filepath.Join(DataRoot(), "playbook.yaml")
}

// GlobalToxicLogPath resolves the global toxic log.
func GlobalToxicLogPath() string {
	return filepath.Join(DataRoot(), "toxic_bullets.log")
}

// OutcomeLogPath resolves the append-only outcome log.
func OutcomeLogPath() string {
	return filepath.Join(DataRoot(), "outcomes.jsonl")
}

// DiaryDir resolves the per-session diary directory.
func DiaryDir() string {
	return filepath.Join(DataRoot(), "diary")
}

// ReflectionsDir resolves the processed-log directory.
func ReflectionsDir() string {
	return filepath.Join(DataRoot(), "reflections")
}

// EmbeddingCachePath resolves the bullet embedding cache.
func EmbeddingCachePath() string {
	return filepath.Join(DataRoot(), "embeddings", "bullets.json")
}

// FindRepoRoot walks up from dir looking for a directory that carries either a
// .cass overlay or a .git marker. Returns an error when neither is found.
func FindRepoRoot(dir string) (string, error) {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		for _, marker := range []string{".cass", ".git"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no repo root found above %s", dir)
		}
		dir = parent
	}
}

// RepoPlaybookPath returns the per-repo overlay playbook for a repo root.
func RepoPlaybookPath(repoRoot string) string {
	return filepath.Join(repoRoot, ".cass", "playbook.yaml")
}

// RepoToxicLogPath returns the per-repo toxic log for a repo root.
func RepoToxicLogPath(repoRoot string) string {
	return filepath.Join(repoRoot, ".cass", "toxic.log")
}
