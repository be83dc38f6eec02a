package host

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/wagiedev/scripthost-go/internal/errors"
)

// executableNames lists PowerShell executables in order of preference.
var executableNames = []string{"pwsh", "powershell"}

// Config holds configuration for PowerShell discovery.
type Config struct {
	// Path is an explicit executable path that skips the search.
	Path string

	// Logger is an optional logger for discovery operations.
	Logger *slog.Logger
}

// Find locates a PowerShell executable: the explicit path when configured,
// otherwise the first candidate on PATH, otherwise a well-known install
// location.
func Find(cfg *Config) (string, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	if cfg.Path != "" {
		if _, err := os.Stat(cfg.Path); err == nil {
			return cfg.Path, nil
		}

		log.Debug("Explicit PowerShell path not found", "path", cfg.Path)

		return "", &errors.HostNotFoundError{SearchedPaths: []string{cfg.Path}}
	}

	for _, name := range executableNames {
		if path, err := exec.LookPath(name); err == nil {
			log.Debug("Found PowerShell in PATH", "path", path)

			return path, nil
		}
	}

	searched := []string{"$PATH"}

	for _, path := range commonPaths() {
		searched = append(searched, path)

		if _, err := os.Stat(path); err == nil {
			log.Debug("Found PowerShell at common path", "path", path)

			return path, nil
		}
	}

	log.Warn("PowerShell not found in any searched paths", "searched_paths", searched)

	return "", &errors.HostNotFoundError{SearchedPaths: searched}
}

func commonPaths() []string {
	if runtime.GOOS == "windows" {
		paths := []string{}

		for _, env := range []string{"ProgramFiles", "ProgramW6432"} {
			if dir := os.Getenv(env); dir != "" {
				paths = append(paths, filepath.Join(dir, "PowerShell", "7", "pwsh.exe"))
			}
		}

		if root := os.Getenv("SystemRoot"); root != "" {
			paths = append(paths, filepath.Join(root, "System32", "WindowsPowerShell", "v1.0", "powershell.exe"))
		}

		return paths
	}

	paths := []string{
		"/usr/local/bin/pwsh",
		"/usr/bin/pwsh",
		"/opt/microsoft/powershell/7/pwsh",
		"/snap/bin/pwsh",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".dotnet", "tools", "pwsh"))
	}

	return paths
}
