//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	scripthost "github.com/wagiedev/scripthost-go"
)

// skipIfPowerShellNotInstalled skips the test if no PowerShell executable is found.
func skipIfPowerShellNotInstalled(t *testing.T, err error) {
	t.Helper()

	if _, ok := errors.AsType[*scripthost.HostNotFoundError](err); ok {
		t.Skip("PowerShell not installed")
	}
}

// newSession starts a manager and returns the PowerShell session it owns.
func newSession(t *testing.T, opts ...scripthost.Option) (*scripthost.Manager, []string, *scripthost.Session) {
	t.Helper()

	pwsh, err := scripthost.FindPowerShell()
	if err != nil {
		skipIfPowerShellNotInstalled(t, err)
		t.Fatalf("FindPowerShell failed: %v", err)
	}

	m := scripthost.New(opts...)
	t.Cleanup(func() { _ = m.Close() })

	argv := scripthost.PowerShellCommand(pwsh)

	s, err := m.Instance(context.Background(), argv[0], argv[1:]...)
	require.NoError(t, err)

	return m, argv, s
}
