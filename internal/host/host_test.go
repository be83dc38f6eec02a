package host

import (
	"encoding/base64"
	stderrors "errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/scripthost-go/internal/errors"
)

func decodeCommand(t *testing.T, encoded string) string {
	t.Helper()

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	require.Zero(t, len(raw)%2)

	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
	}

	return string(utf16.Decode(units))
}

func TestEncodeCommand(t *testing.T) {
	// Known value: powershell -EncodedCommand for "dir".
	require.Equal(t, "ZABpAHIA", EncodeCommand("dir"))
	require.Equal(t, "write-output 'é€'", decodeCommand(t, EncodeCommand("write-output 'é€'")))
}

func TestBootstrap_IsEmbedded(t *testing.T) {
	require.Contains(t, Bootstrap, "__scripthost_WriteFrame")
	require.Contains(t, Bootstrap, "Working directory specified does not exist")
	require.Contains(t, Bootstrap, "script host timeout")
}

func TestBootstrap_GuardsProtocolStream(t *testing.T) {
	// Console writes are redirected before any script runs.
	require.Contains(t, Bootstrap, "[Console]::SetOut([Console]::Error)")
	require.Less(t,
		strings.Index(Bootstrap, "[Console]::SetOut([Console]::Error)"),
		strings.Index(Bootstrap, "__scripthost_WriteJson 'H'"),
	)

	// Top-level exit codes arrive through the host, so the runspace needs one.
	require.Contains(t, Bootstrap, "public override void SetShouldExit(int exitCode)")
	require.Contains(t, Bootstrap, "[RunspaceFactory]::CreateRunspace($__scripthost_host)")
}

func TestCommand(t *testing.T) {
	argv := Command("/usr/bin/pwsh")

	require.Equal(t, "/usr/bin/pwsh", argv[0])
	require.Equal(t, "-EncodedCommand", argv[len(argv)-2])
	require.Equal(t, Bootstrap, decodeCommand(t, argv[len(argv)-1]))
	require.True(t, strings.HasPrefix(strings.Join(argv[1:], " "), "-NoLogo -NoProfile -NonInteractive"))
}

func TestFind_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pwsh")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	found, err := Find(&Config{Path: path})
	require.NoError(t, err)
	require.Equal(t, path, found)
}

func TestFind_ExplicitPathMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	_, err := Find(&Config{Path: missing})

	notFound, ok := stderrors.AsType[*errors.HostNotFoundError](err)
	require.True(t, ok)
	require.Equal(t, []string{missing}, notFound.SearchedPaths)
}

func TestFind_SearchesPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Test uses a POSIX executable")
	}

	dir := t.TempDir()
	pwsh := filepath.Join(dir, "pwsh")
	require.NoError(t, os.WriteFile(pwsh, []byte("#!/bin/sh\n"), 0o755)) //nolint:gosec // must be executable

	t.Setenv("PATH", dir)

	found, err := Find(nil)
	require.NoError(t, err)
	require.Equal(t, pwsh, found)
}
