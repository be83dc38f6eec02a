// Package host carries the PowerShell side of the script host protocol and
// builds the command lines that start it.
package host

import (
	_ "embed"
	"encoding/base64"
	"unicode/utf16"
)

// Bootstrap is the PowerShell program that serves the frame protocol.
//
//go:embed bootstrap.ps1
var Bootstrap string

// EncodeCommand encodes a script for PowerShell's -EncodedCommand flag:
// base64 of the UTF-16LE text.
func EncodeCommand(script string) string {
	units := utf16.Encode([]rune(script))

	buf := make([]byte, 0, len(units)*2)
	for _, u := range units {
		buf = append(buf, byte(u), byte(u>>8))
	}

	return base64.StdEncoding.EncodeToString(buf)
}

// Args returns the arguments that start PowerShell executing Bootstrap.
func Args() []string {
	return []string{
		"-NoLogo",
		"-NoProfile",
		"-NonInteractive",
		"-ExecutionPolicy", "Bypass",
		"-EncodedCommand", EncodeCommand(Bootstrap),
	}
}

// Command returns the full argv for a PowerShell executable at path.
func Command(path string) []string {
	return append([]string{path}, Args()...)
}
