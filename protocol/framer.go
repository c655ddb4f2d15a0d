package protocol

import (
	"bufio"
	"bytes"
)

// Framer produces a bufio.SplitFunc that tokenizes the device's byte
// stream into protocol lines.
//
// Lines end with "\n" (a preceding "\r" is stripped). During the login
// handshake the device also emits bare prompts ("login: ", "password: ")
// that carry no terminator at all; the framer recognizes those by a
// configurable set of prompt substrings, matched case-insensitively, and
// emits the buffered text up to the end of the prompt as its own token.
//
// Unconsumed trailing bytes stay in the scanner's buffer for the next
// call, so nothing is lost across reads.
type Framer struct {
	prompts [][]byte
}

// NewFramer returns a framer recognizing the given prompt substrings in
// addition to newline-terminated lines. Prompts are matched
// case-insensitively; pass nothing for a plain line splitter.
func NewFramer(prompts ...string) *Framer {
	f := &Framer{}
	for _, p := range prompts {
		if p != "" {
			f.prompts = append(f.prompts, bytes.ToLower([]byte(p)))
		}
	}
	return f
}

// Split implements bufio.SplitFunc.
func (f *Framer) Split(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, bytes.TrimSuffix(data[:i], []byte("\r")), nil
	}

	// No terminator buffered yet. If the data ends in a recognized
	// prompt (optionally followed by spaces), emit it now; waiting for
	// a newline that will never come would deadlock the handshake.
	lower := bytes.ToLower(data)
	for _, p := range f.prompts {
		if i := bytes.Index(lower, p); i >= 0 {
			end := i + len(p)
			for end < len(data) && data[end] == ' ' {
				end++
			}
			return end, data[:end], nil
		}
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = (*Framer)(nil).Split
