// Package errrecord classifies and renders error records reported by the
// script host.
//
// The host reports every error it observes as a structured record. Records
// for runtime and parse failures carry a position that is rendered as a
// "line:N char:M" locator; records for incomplete input (an unterminated
// block) never do, because there is no valid parse position to point at.
package errrecord

import (
	"fmt"
	"regexp"
	"strings"
)

// WrapperPrefix is the prefix of every identifier the host bootstrap uses
// for its own helper functions. Such identifiers never reach callers.
const WrapperPrefix = "__scripthost_"

// Category identifies the kind of error record.
type Category string

const (
	// CategoryWrite is a non-terminating record written by the script to
	// its error stream. It does not affect the exit code.
	CategoryWrite Category = "write"
	// CategoryRuntime is an uncaught error thrown while executing valid syntax.
	CategoryRuntime Category = "runtime"
	// CategoryParse is a syntax error with a known position.
	CategoryParse Category = "parse"
	// CategoryIncomplete is a syntax error caused by an unterminated construct.
	CategoryIncomplete Category = "incomplete"
)

// Record is an error record as sent by the host.
type Record struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	// Wrapper names a host-internal identifier to scrub from Message.
	Wrapper string `json:"wrapper,omitempty"`
}

var (
	wrapperTokenRe = regexp.MustCompile(regexp.QuoteMeta(WrapperPrefix) + `[A-Za-z0-9_\-]*`)
	locatorLineRe  = regexp.MustCompile(`(?m)^\s*At line:\d+ char:\d+.*$\n?`)
	anyLocatorRe   = regexp.MustCompile(`line:\d+ char:\d+`)
	// Lines that only exist to point into a wrapper, e.g. "At __scripthost_invoke:3 char:1".
	wrapperLineRe = regexp.MustCompile(`(?m)^.*` + regexp.QuoteMeta(WrapperPrefix) + `.*:\d+ char:\d+.*$\n?`)
)

// Classify returns the record's category, treating unknown values as runtime
// failures so they are never mistaken for non-terminating output.
func (r *Record) Classify() Category {
	switch r.Category {
	case CategoryWrite, CategoryRuntime, CategoryParse, CategoryIncomplete:
		return r.Category
	default:
		return CategoryRuntime
	}
}

// Terminating reports whether the record ended the script.
func (r *Record) Terminating() bool {
	return r.Classify() != CategoryWrite
}

// Locator returns the "line:N char:M" position, or "" when the record has
// none or must not show one.
func (r *Record) Locator() string {
	switch r.Classify() {
	case CategoryIncomplete:
		return ""
	case CategoryRuntime, CategoryParse:
		line, col := r.Line, r.Column
		if line < 1 {
			line = 1
		}

		if col < 1 {
			col = 1
		}

		return fmt.Sprintf("line:%d char:%d", line, col)
	default:
		if r.Line < 1 {
			return ""
		}

		return fmt.Sprintf("line:%d char:%d", r.Line, max(r.Column, 1))
	}
}

// Format renders the record as the caller sees it in Result.Stderr.
func (r *Record) Format() string {
	msg := Scrub(r.Message, r.Wrapper)

	if r.Classify() == CategoryIncomplete {
		// The host may already have rendered a position into the text.
		msg = locatorLineRe.ReplaceAllString(msg, "")

		return strings.TrimSpace(anyLocatorRe.ReplaceAllString(msg, ""))
	}

	loc := r.Locator()
	if loc == "" || strings.Contains(msg, "At "+loc) {
		return msg
	}

	return msg + "\nAt " + loc
}

// Scrub removes references to host-internal wrapper identifiers from msg.
func Scrub(msg, wrapper string) string {
	msg = wrapperLineRe.ReplaceAllString(msg, "")

	if wrapper != "" && !strings.HasPrefix(wrapper, WrapperPrefix) {
		msg = strings.ReplaceAll(msg, wrapper, "<script>")
	}

	msg = wrapperTokenRe.ReplaceAllString(msg, "<script>")

	return strings.TrimRight(msg, "\r\n ")
}

// HasLocator reports whether text contains a "line:N char:M" locator.
func HasLocator(text string) bool {
	return anyLocatorRe.MatchString(text)
}
