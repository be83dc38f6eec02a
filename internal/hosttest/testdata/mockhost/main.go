//go:build ignore

// Command mockhost simulates a script host for tests. It speaks the
// scripthost frame protocol on stdin/stdout and runs a tiny line language
// instead of a real shell. Statements are separated by newlines or ';':
//
//	echo TEXT            write TEXT and a newline to stdout
//	rawout TEXT          write TEXT to the console, which is stderr
//	repeat CHAR N        write CHAR N times and a newline to stdout
//	error TEXT           non-terminating error record
//	throw TEXT           runtime error record, ends the script with exit code 1
//	verbose|debug|warning|information TEXT   diagnostic stream record
//	exit N               end the script with exit code N
//	sleep MS             sleep, honouring the request timeout
//	set NAME VALUE / get NAME         script variables
//	setenv NAME VALUE / getenv NAME   process environment
//	pid / pwd            print the process id / working directory
//	wrapper              runtime error mentioning bootstrap helper names
//	garbage              write an invalid frame
//	closeout             close stdout
//	crash                exit the process immediately
//
// Any other leading word is a parse error; unbalanced '{' is incomplete input.
// Variables, environment and working directory are reset after every request.
//
// SCRIPTHOST_MOCK_MODE selects failure modes:
//
//	no-hello        never send the hello frame
//	bad-hello       send an output frame instead of hello
//	exit-on-start   write to stderr and exit 2
//	ignore-timeout  ignore the request timeout
package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

type request struct {
	ID         string `json:"id"`
	Script     string `json:"script"`
	TimeoutMS  int64  `json:"timeout_ms"`
	WorkingDir string `json:"working_dir"`
}

type frame struct {
	kind    byte
	payload []byte
}

type errExit struct{ code int }

func (e errExit) Error() string { return "exit " + strconv.Itoa(e.code) }

var (
	mode     = os.Getenv("SCRIPTHOST_MOCK_MODE")
	startDir string
	baseEnv  []string
	vars     = map[string]string{}
	commands = map[string]bool{
		"echo": true, "rawout": true, "repeat": true, "error": true, "throw": true,
		"verbose": true, "debug": true, "warning": true, "information": true,
		"exit": true, "sleep": true, "set": true, "get": true, "setenv": true,
		"getenv": true, "pid": true, "pwd": true, "wrapper": true,
		"garbage": true, "closeout": true, "crash": true,
	}
)

// console receives direct console writes. The PowerShell bootstrap points
// them at stderr so stdout carries only frames.
var console io.Writer = os.Stderr

func main() {
	startDir, _ = os.Getwd()
	baseEnv = os.Environ()

	switch mode {
	case "exit-on-start":
		fmt.Fprintln(os.Stderr, "mockhost: refusing to start")
		os.Exit(2)
	case "no-hello":
		_, _ = io.Copy(io.Discard, os.Stdin)
		return
	case "bad-hello":
		send(frame{'O', []byte("not a hello")})
	default:
		sendJSON('H', map[string]any{"pid": os.Getpid(), "cwd": startDir, "version": "mock-1"})
	}

	for {
		f, err := readFrame()
		if err != nil {
			return
		}

		switch f.kind {
		case 'Q':
			return
		case 'X':
			var req request
			if err := json.Unmarshal(f.payload, &req); err != nil {
				fmt.Fprintf(os.Stderr, "mockhost: bad request: %v\n", err)
				continue
			}

			handle(&req)
			reset()
		default:
			fmt.Fprintf(os.Stderr, "mockhost: ignoring frame %q\n", f.kind)
		}
	}
}

func readFrame() (frame, error) {
	var header [5]byte
	if _, err := io.ReadFull(os.Stdin, header[:]); err != nil {
		return frame{}, err
	}

	payload := make([]byte, binary.BigEndian.Uint32(header[1:]))
	if _, err := io.ReadFull(os.Stdin, payload); err != nil {
		return frame{}, err
	}

	return frame{header[0], payload}, nil
}

func send(frames ...frame) {
	for _, f := range frames {
		buf := make([]byte, 5, 5+len(f.payload))
		buf[0] = f.kind
		binary.BigEndian.PutUint32(buf[1:], uint32(len(f.payload)))
		buf = append(buf, f.payload...)

		if _, err := os.Stdout.Write(buf); err != nil {
			fmt.Fprintf(os.Stderr, "mockhost: write: %v\n", err)
		}
	}
}

func jsonFrame(kind byte, v any) frame {
	data, _ := json.Marshal(v)

	return frame{kind, data}
}

func sendJSON(kind byte, v any) {
	send(jsonFrame(kind, v))
}

func status(id string, code int, msg string) frame {
	st := map[string]any{"id": id, "exitcode": code}
	if msg != "" {
		st["errormessage"] = msg
	}

	return jsonFrame('R', st)
}

func handle(req *request) {
	if req.WorkingDir != "" {
		if err := os.Chdir(req.WorkingDir); err != nil {
			send(status(req.ID, 1, "Working directory specified does not exist: "+req.WorkingDir))

			return
		}
	}

	timeout := time.Duration(req.TimeoutMS) * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	runCtx := ctx
	if mode == "ignore-timeout" {
		runCtx = context.Background()
	}

	type outcome struct {
		frames []frame
		code   int
	}

	done := make(chan outcome, 1)

	go func() {
		frames, code := run(runCtx, req.Script)
		done <- outcome{frames, code}
	}()

	if mode == "ignore-timeout" {
		out := <-done
		send(append(out.frames, status(req.ID, out.code, ""))...)

		return
	}

	select {
	case out := <-done:
		send(append(out.frames, status(req.ID, out.code, ""))...)
	case <-ctx.Done():
		<-done
		send(status(req.ID, 1, fmt.Sprintf("Catastrophic failure: script host timeout (%d ms) exceeded while executing", req.TimeoutMS)))
	}
}

type statement struct {
	line, col int
	word      string
	rest      string
}

func parse(script string) ([]statement, []frame) {
	if strings.Count(script, "{") > strings.Count(script, "}") {
		return nil, []frame{jsonFrame('E', map[string]any{
			"category": "incomplete",
			"message":  "Missing closing '}' in statement block or type definition.\nAt line:1 char:1",
			"line":     1,
			"column":   1,
		})}
	}

	var stmts []statement

	for i, line := range strings.Split(script, "\n") {
		col := 1

		for _, part := range strings.Split(line, ";") {
			trimmed := strings.TrimSpace(part)
			offset := strings.Index(part, trimmed)
			word, rest, _ := strings.Cut(trimmed, " ")
			word = strings.Trim(word, "{}")

			if word != "" && !commands[word] {
				return nil, []frame{jsonFrame('E', map[string]any{
					"category": "parse",
					"message":  fmt.Sprintf("Unexpected token '%s' in expression or statement.", word),
					"line":     i + 1,
					"column":   col + offset,
				})}
			}

			if word != "" {
				stmts = append(stmts, statement{i + 1, col + offset, word, strings.TrimSpace(strings.Trim(rest, "{}"))})
			}

			col += len(part) + 1
		}
	}

	return stmts, nil
}

func run(ctx context.Context, script string) ([]frame, int) {
	stmts, errs := parse(script)
	if errs != nil {
		return errs, 1
	}

	var out []frame

	for _, st := range stmts {
		frames, err := exec(ctx, st)
		out = append(out, frames...)

		var exit errExit
		if errors.As(err, &exit) {
			return out, exit.code
		}

		if err != nil {
			return out, 1
		}
	}

	return out, 0
}

func exec(ctx context.Context, st statement) ([]frame, error) {
	text := func(s string) []frame { return []frame{{'O', []byte(s + "\n")}} }

	switch st.word {
	case "echo":
		return text(st.rest), nil

	case "rawout":
		fmt.Fprintln(console, st.rest)

		return nil, nil

	case "repeat":
		char, count, _ := strings.Cut(st.rest, " ")
		n, _ := strconv.Atoi(count)

		return text(strings.Repeat(char, n)), nil

	case "error":
		return []frame{jsonFrame('E', map[string]any{"category": "write", "message": st.rest, "line": st.line, "column": st.col})}, nil

	case "throw":
		return []frame{jsonFrame('E', map[string]any{"category": "runtime", "message": st.rest, "line": st.line, "column": st.col})}, errExit{1}

	case "wrapper":
		return []frame{jsonFrame('E', map[string]any{
			"category": "runtime",
			"message":  "boom in __scripthost_Invoke\nAt __scripthost_Invoke:12 char:5",
			"line":     st.line,
			"column":   st.col,
		})}, errExit{1}

	case "verbose", "debug", "warning", "information":
		return []frame{jsonFrame('S', map[string]any{"stream": st.word, "text": st.rest})}, nil

	case "exit":
		code, _ := strconv.Atoi(st.rest)

		return nil, errExit{code}

	case "sleep":
		ms, _ := strconv.Atoi(st.rest)

		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}

	case "set":
		name, value, _ := strings.Cut(st.rest, " ")
		vars[name] = value

		return nil, nil

	case "get":
		if v, ok := vars[st.rest]; ok {
			return text(v), nil
		}

		return nil, nil

	case "setenv":
		name, value, _ := strings.Cut(st.rest, " ")

		return nil, os.Setenv(name, value)

	case "getenv":
		if v, ok := os.LookupEnv(st.rest); ok {
			return text(v), nil
		}

		return nil, nil

	case "pid":
		return text(strconv.Itoa(os.Getpid())), nil

	case "pwd":
		dir, _ := os.Getwd()

		return text(dir), nil

	case "garbage":
		return []frame{{'Z', []byte("???")}}, nil

	case "closeout":
		_ = os.Stdout.Close()

		return nil, nil

	case "crash":
		fmt.Fprintln(os.Stderr, "mockhost: fatal: crash requested")
		os.Exit(3)
	}

	return nil, nil
}

func reset() {
	clear(vars)

	os.Clearenv()

	for _, kv := range baseEnv {
		if k, v, ok := strings.Cut(kv, "="); ok {
			_ = os.Setenv(k, v)
		}
	}

	_ = os.Chdir(startDir)
}
