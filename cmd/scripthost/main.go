// Command scripthost runs scripts in a persistent PowerShell host and serves
// that host as Model Context Protocol tools.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	scripthost "github.com/wagiedev/scripthost-go"
	"github.com/wagiedev/scripthost-go/internal/config"
	"github.com/wagiedev/scripthost-go/internal/host"
	"github.com/wagiedev/scripthost-go/internal/mcp"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "scripthost:", err)
		os.Exit(1)
	}
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "scripthost",
		Usage:     "run scripts in a persistent PowerShell host",
		Version:   scripthost.Version,
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file",
				EnvVars: []string{"SCRIPTHOST_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level. One of [debug,info,warn,error].",
				Value: "warn",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Path to the PowerShell executable. Searched on PATH when unset.",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "run one script and print its result as JSON",
				ArgsUsage: "[SCRIPT|-]",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Run timeout.",
					},
					&cli.StringFlag{
						Name:  "cwd",
						Usage: "Working directory for this script.",
					},
				},
				Action: runAction,
			},
			{
				Name:   "serve",
				Usage:  "serve the host as MCP tools over stdin/stdout",
				Action: serveAction,
			},
			{
				Name:  "version",
				Usage: "print the scripthost version",
				Action: func(cCtx *cli.Context) error {
					_, err := fmt.Fprintf(cCtx.App.Writer, "%s %s\n", cCtx.App.Name, scripthost.Version)

					return err
				},
			},
		},
	}
}

// setup loads the config file and returns manager options and the host
// command line.
func setup(cCtx *cli.Context) (*config.Options, []string, error) {
	file, err := config.Load(cCtx.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cCtx.String("log-level"))); err != nil {
		return nil, nil, fmt.Errorf("parsing log level: %w", err)
	}

	opts := &config.Options{
		Logger: scripthost.NewTextLogger(cCtx.App.ErrWriter, level),
	}
	file.Apply(opts)

	argv, err := hostCommand(cCtx.String("host"), file)
	if err != nil {
		return nil, nil, err
	}

	return opts, argv, nil
}

// hostCommand resolves the executable (flag, then config file, then search)
// and its arguments (config file, else the bundled bootstrap).
func hostCommand(path string, file *config.File) ([]string, error) {
	if path == "" {
		path = file.Host
	}

	path, err := host.Find(&host.Config{Path: path})
	if err != nil {
		return nil, err
	}

	if file.Args != nil {
		return append([]string{path}, file.Args...), nil
	}

	return host.Command(path), nil
}

func runAction(cCtx *cli.Context) error {
	script, err := readScript(cCtx)
	if err != nil {
		return err
	}

	opts, argv, err := setup(cCtx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt)
	defer stop()

	var runOpts []scripthost.RunOption
	if d := cCtx.Duration("timeout"); d > 0 {
		runOpts = append(runOpts, scripthost.WithTimeout(d))
	}

	if dir := cCtx.String("cwd"); dir != "" {
		runOpts = append(runOpts, scripthost.WithWorkingDirectory(dir))
	}

	var res *scripthost.Result

	err = scripthost.WithManager(ctx, func(m *scripthost.Manager) error {
		res, err = m.Run(ctx, argv, script, runOpts...)

		return err
	}, scripthost.WithConfigOptions(opts))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cCtx.App.Writer)
	enc.SetIndent("", "  ")

	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}

	if res.ExitCode != 0 {
		return cli.Exit("", exitStatus(res.ExitCode))
	}

	return nil
}

// exitStatus maps a script exit code onto a process exit status.
func exitStatus(code int) int {
	if code < 0 || code > 255 {
		return 1
	}

	return code
}

func readScript(cCtx *cli.Context) (string, error) {
	switch arg := cCtx.Args().First(); {
	case cCtx.NArg() > 1:
		return "", fmt.Errorf("expected one script argument, got %d", cCtx.NArg())
	case arg != "" && arg != "-":
		return arg, nil
	}

	data, err := io.ReadAll(cCtx.App.Reader)
	if err != nil {
		return "", fmt.Errorf("reading script from stdin: %w", err)
	}

	script := string(data)
	if strings.TrimSpace(script) == "" {
		return "", fmt.Errorf("no script given")
	}

	return script, nil
}

func serveAction(cCtx *cli.Context) error {
	opts, argv, err := setup(cCtx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt)
	defer stop()

	m := scripthost.New(scripthost.WithConfigOptions(opts))
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- m.Close() }()

		select {
		case err := <-done:
			if err != nil {
				opts.Logger.Warn("closing script hosts", "error", err)
			}
		case <-closeCtx.Done():
			opts.Logger.Warn("timed out closing script hosts")
		}
	}()

	server := mcp.NewServer(&mcp.Config{
		Name:    "scripthost",
		Version: scripthost.Version,
		Command: argv,
		Logger:  opts.Logger,
	}, m)

	opts.Logger.Info("serving MCP over stdio", "host", argv[0])

	return mcp.Serve(ctx, server)
}
