// Package mcp exposes script hosts as Model Context Protocol tools.
//
// The server offers run_script, which runs script text in the persistent
// host session for a configured command line, and reset_host, which
// terminates that host so the next call starts a fresh one.
package mcp
