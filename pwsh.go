package scripthost

import "github.com/wagiedev/scripthost-go/internal/host"

// PowerShellCommand returns the command line that starts the PowerShell
// executable at path running the bundled script host.
func PowerShellCommand(path string) []string {
	return host.Command(path)
}

// FindPowerShell locates pwsh or Windows PowerShell. It returns a
// *HostNotFoundError when neither is installed.
func FindPowerShell() (string, error) {
	return host.Find(nil)
}
