package app

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"swvcs/internal/config"
	"swvcs/internal/vcs"
)

// LogFileName is the application log inside the log directory.
const LogFileName = "swvcs.log"

// ConfigPath returns the config file path for a project, checking
// SWVCS_CONFIG first and falling back to <project>/.swvcs/config.toml.
func ConfigPath(projectDir string) string {
	if path := os.Getenv("SWVCS_CONFIG"); path != "" {
		return path
	}
	return config.Path(vcs.RootFor(projectDir))
}

// LogDir returns the directory the application log is written to.
func LogDir(cfg *config.Config, projectDir string) string {
	if cfg.Log.Dir != "" {
		return cfg.Log.Dir
	}
	return filepath.Join(vcs.RootFor(projectDir), "log")
}

// DefaultAuthor returns the identity recorded on commits when the config
// leaves author empty: SWVCS_AUTHOR, then the OS user, then "unknown".
func DefaultAuthor() string {
	if name := os.Getenv("SWVCS_AUTHOR"); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// FindProjectDir walks up from start until it finds a directory holding a
// repository root.
func FindProjectDir(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	for {
		info, err := os.Stat(vcs.RootFor(dir))
		if err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a swvcs repository (or any parent): %s", start)
		}
		dir = parent
	}
}
