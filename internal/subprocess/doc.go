// Package subprocess provides the pipe transport for script host processes.
//
// This package spawns the host as a child process and exposes its three
// standard pipes as raw byte streams: writes to stdin, chunked reads from
// stdout and a bounded diagnostic tail of stderr. It handles process
// lifecycle management and concurrent draining; framing belongs to the
// protocol package.
package subprocess
