package protocol_test

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bballdavis/wattbox-go/protocol"
)

func TestCommandFormat(t *testing.T) {
	tests := []struct {
		name     string
		command  protocol.Command
		expected string
	}{
		{
			name:     "Bare query",
			command:  protocol.Query(protocol.CmdFirmware),
			expected: "?Firmware",
		},
		{
			name:     "Query with argument",
			command:  protocol.OutletPowerQuery(3),
			expected: "?OutletPowerStatus=3",
		},
		{
			name:     "Control without delay",
			command:  protocol.OutletSet(3, protocol.ActionOn, 0),
			expected: "!OutletSet=3,ON",
		},
		{
			name:     "Control with delay in whole seconds",
			command:  protocol.OutletSet(3, protocol.ActionReset, 10*time.Second),
			expected: "!OutletSet=3,RESET,10",
		},
		{
			name:     "All-outlet reset",
			command:  protocol.OutletSet(0, protocol.ActionReset, 5*time.Second),
			expected: "!OutletSet=0,RESET,5",
		},
		{
			name:     "Auto reboot on",
			command:  protocol.AutoRebootSet(true),
			expected: "!AutoReboot=1",
		},
		{
			name:     "Single outlet rename",
			command:  protocol.OutletNameSet(2, "AV Rack"),
			expected: "!OutletNameSet=2,{AV Rack}",
		},
		{
			name:     "Rename all with comma in a name",
			command:  protocol.OutletNameSetAll([]string{"Router", "Rack, left"}),
			expected: "!OutletNameSetAll={Router},{Rack, left}",
		},
		{
			name:     "Bare control",
			command:  protocol.Control(protocol.CmdExit, ""),
			expected: "!Exit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.command.Format(); got != tt.expected {
				t.Errorf("Format() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// Serializing a command and parsing the produced wire line back must
// recover the same name, argument and delay.
func TestCommandRoundTrip(t *testing.T) {
	commands := []protocol.Command{
		protocol.Query(protocol.CmdOutletStatus),
		protocol.QueryArg(protocol.CmdOutletPowerStatus, "7"),
		protocol.Control(protocol.CmdOutletSet, "3,TOGGLE"),
		protocol.OutletSet(12, protocol.ActionReset, 30*time.Second),
		protocol.AutoRebootSet(false),
	}

	for _, cmd := range commands {
		t.Run(cmd.Format(), func(t *testing.T) {
			msg, err := protocol.Parse(cmd.Format())
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", cmd.Format(), err)
			}

			if msg.Name != cmd.Name {
				t.Errorf("name: got %q, want %q", msg.Name, cmd.Name)
			}

			wantKind := protocol.MsgQueryReply
			if cmd.Kind == protocol.KindControl {
				wantKind = protocol.MsgControlAck
			}
			if msg.Kind != wantKind {
				t.Errorf("kind: got %v, want %v", msg.Kind, wantKind)
			}

			fields := msg.Fields
			if cmd.Delay > 0 {
				if len(fields) == 0 {
					t.Fatal("expected trailing delay field")
				}
				last := fields[len(fields)-1]
				if last != strconv.Itoa(int(cmd.Delay/time.Second)) {
					t.Errorf("delay field: got %q, want %d", last, int(cmd.Delay/time.Second))
				}
				fields = fields[:len(fields)-1]
			}
			if got := strings.Join(fields, ","); got != cmd.Arg {
				t.Errorf("argument: got %q, want %q", got, cmd.Arg)
			}
		})
	}
}
