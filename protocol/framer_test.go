package protocol_test

import (
	"bufio"
	"strings"
	"testing"

	"github.com/bballdavis/wattbox-go/protocol"
)

func TestFramerSplit(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Simple query replies",
			input:    "?OutletStatus=1,0,1\n?Firmware=2.4.0\n",
			expected: []string{"?OutletStatus=1,0,1", "?Firmware=2.4.0"},
		},
		{
			name:     "CRLF line endings",
			input:    "?Model=WB-800-IPVM-12\r\n!OutletSet=3,ON\r\n",
			expected: []string{"?Model=WB-800-IPVM-12", "!OutletSet=3,ON"},
		},
		{
			name:     "Banner followed by login prompt without terminator",
			input:    "WattBox Telnet Server\r\nlogin: ",
			expected: []string{"WattBox Telnet Server", "login: "},
		},
		{
			name:     "Prompt matched case-insensitively",
			input:    "Login:",
			expected: []string{"Login:"},
		},
		{
			name:     "Password prompt only",
			input:    "password: ",
			expected: []string{"password: "},
		},
		{
			name:     "Error and unsolicited frames",
			input:    "#Error,4\n~OutletStatus=0,0,1\n",
			expected: []string{"#Error,4", "~OutletStatus=0,0,1"},
		},
		{
			name:     "Empty lines preserved as empty tokens",
			input:    "\r\n\r\n?Hostname=rack\n",
			expected: []string{"", "", "?Hostname=rack"},
		},
		{
			name:     "Incomplete line flushed at EOF",
			input:    "?Firmware=2.4.0\n?Hostname=ra",
			expected: []string{"?Firmware=2.4.0", "?Hostname=ra"},
		},
		{
			name:     "Single token without terminator at EOF",
			input:    "?ServiceTag",
			expected: []string{"?ServiceTag"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			framer := protocol.NewFramer("login:", "password:")
			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			scanner.Split(framer.Split)

			var tokens []string
			for scanner.Scan() {
				tokens = append(tokens, scanner.Text())
			}
			if err := scanner.Err(); err != nil {
				t.Fatalf("unexpected scanner error: %v", err)
			}

			if len(tokens) != len(tt.expected) {
				t.Fatalf("expected %d tokens %q, got %d tokens %q",
					len(tt.expected), tt.expected, len(tokens), tokens)
			}
			for i := range tokens {
				if tokens[i] != tt.expected[i] {
					t.Errorf("token %d: expected %q, got %q", i, tt.expected[i], tokens[i])
				}
			}
		})
	}
}

func TestFramerNoPrompts(t *testing.T) {
	// Without configured prompts, unterminated data stays buffered until
	// EOF and only whole lines are emitted.
	framer := protocol.NewFramer()
	scanner := bufio.NewScanner(strings.NewReader("?OutletCount=12\nlogin: "))
	scanner.Split(framer.Split)

	var tokens []string
	for scanner.Scan() {
		tokens = append(tokens, scanner.Text())
	}
	want := []string{"?OutletCount=12", "login: "}
	if len(tokens) != len(want) {
		t.Fatalf("expected %q, got %q", want, tokens)
	}
}
