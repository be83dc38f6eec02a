// Package hosttest builds the mock script host used by tests.
package hosttest

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
)

// ModeEnv selects a failure mode of the mock host.
const ModeEnv = "SCRIPTHOST_MOCK_MODE"

// Mock host failure modes.
const (
	ModeNoHello       = "no-hello"
	ModeBadHello      = "bad-hello"
	ModeExitOnStart   = "exit-on-start"
	ModeIgnoreTimeout = "ignore-timeout"
)

var (
	buildOnce  sync.Once
	binaryPath string
	errBuild   error
)

func build() {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		errBuild = fmt.Errorf("locate hosttest sources")
		return
	}

	dir, err := os.MkdirTemp("", "scripthost-mockhost-*")
	if err != nil {
		errBuild = fmt.Errorf("tmpdir: %w", err)
		return
	}

	binaryPath = filepath.Join(dir, "mockhost")

	cmd := exec.Command("go", "build", "-o", binaryPath, "./testdata/mockhost/main.go")
	cmd.Dir = filepath.Dir(file)

	if out, err := cmd.CombinedOutput(); err != nil {
		errBuild = fmt.Errorf("build mock host: %w: %s", err, out)
		_ = os.RemoveAll(dir)
	}
}

// Binary returns the path of the mock host, building it on first use.
func Binary(t testing.TB) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("mock host wrapper requires a POSIX shell")
	}

	buildOnce.Do(build)

	if errBuild != nil {
		t.Fatalf("mock host build failed: %v", errBuild)
	}

	return binaryPath
}

// Command returns an argv that starts the mock host in the given mode.
// An empty mode starts a well-behaved host. Distinct calls return distinct
// command lines, so each one maps to its own session.
func Command(t testing.TB, mode string) []string {
	t.Helper()

	bin := Binary(t)
	wrapper := filepath.Join(t.TempDir(), "mockhost")
	script := fmt.Sprintf("#!/bin/sh\nexport %s=%s\nexec %s \"$@\"\n", ModeEnv, mode, bin)

	if err := os.WriteFile(wrapper, []byte(script), 0o755); err != nil { //nolint:gosec // test wrapper must be executable
		t.Fatalf("write wrapper: %v", err)
	}

	return []string{wrapper}
}
