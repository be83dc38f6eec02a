// Package protocol implements the framed wire protocol spoken with the
// script host over its standard pipes.
//
// Every message is a frame: one kind byte, a big-endian uint32 payload
// length, then the payload. Requests travel to the host on its stdin as
// 'X' frames. The host answers on its stdout with any number of output
// ('O'), diagnostic stream ('S') and error record ('E') frames, terminated by
// exactly one status frame ('R') carrying the exit code and, for host-level
// failures only, an error message.
//
// The Decoder tolerates arbitrary chunking of the byte stream, and the
// Assembler folds the frames of one response into a Result:
//
//	dec := protocol.NewDecoder(0)
//	asm := protocol.NewAssembler(req.ID)
//	for chunk := range chunks {
//	    frames, err := dec.Feed(chunk)
//	    ...
//	    for _, f := range frames {
//	        done, err := asm.Add(f)
//	        ...
//	    }
//	}
//	res := asm.Result()
package protocol
