// Package scripthost keeps long-lived script host processes and runs script
// text against them.
//
// A Manager owns one Session per unique host command line. The first
// Instance call for a command line starts the host and waits for its
// handshake; later calls return the same Session for as long as its process
// and pipes stay healthy. A Session that loses its host is replaced on the
// next lookup.
//
// # Basic Usage
//
//	m := scripthost.New(scripthost.WithLogger(slog.Default()))
//	defer m.Close()
//
//	pwsh, err := scripthost.FindPowerShell()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	argv := scripthost.PowerShellCommand(pwsh)
//
//	s, err := m.Instance(ctx, argv[0], argv[1:]...)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res := s.Run(ctx, "write-output foo; exit 55",
//	    scripthost.WithTimeout(10*time.Second),
//	)
//	fmt.Print(res.Stdout) // foo
//	fmt.Println(res.ExitCode) // 55
//
// # Results
//
// Run never returns a Go error. A Result carries the script's standard
// output, its rendered error records, and its exit code as independent
// fields: error records do not change the exit code. ErrorMessage is set only
// for failures of the host itself, such as a timeout or a missing working
// directory. When the host process or its pipes fail, the Session becomes
// dead and every Run returns the same Result with exit code -1 and the
// failure in Stderr.
//
// # Timeouts
//
// The timeout travels with each request and the host cancels the script
// itself, answering with exit code 1 and an ErrorMessage naming the bound;
// the Session stays usable. A host that does not answer within the timeout
// plus a grace period is killed and its Session becomes dead.
//
// # Logging
//
// Components log through log/slog. Without WithLogger the Manager is silent.
package scripthost
