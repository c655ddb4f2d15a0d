package protocol

import (
	"strconv"
	"strings"
	"time"
)

// Command is an immutable client request. Name and Kind select the wire
// verb; Arg carries the `=argument` payload when non-empty; Delay, when
// positive, is appended as a whole-seconds `,delay` suffix (used by
// delayed outlet resets).
type Command struct {
	Name  string
	Kind  CmdKind
	Arg   string
	Delay time.Duration
}

// Query builds a read-only command with no argument.
func Query(name string) Command {
	return Command{Name: name, Kind: KindQuery}
}

// QueryArg builds a read-only command carrying an argument.
func QueryArg(name, arg string) Command {
	return Command{Name: name, Kind: KindQuery, Arg: arg}
}

// Control builds a state-changing command.
func Control(name, arg string) Command {
	return Command{Name: name, Kind: KindControl, Arg: arg}
}

// Format serializes the command into its wire line, without the
// trailing terminator.
//
//	?OutletPowerStatus=3
//	!OutletSet=3,RESET,10
func (c Command) Format() string {
	var b strings.Builder
	if c.Kind == KindControl {
		b.WriteByte(SigilControl)
	} else {
		b.WriteByte(SigilQuery)
	}
	b.WriteString(c.Name)
	if c.Arg != "" {
		b.WriteByte('=')
		b.WriteString(c.Arg)
	}
	if c.Delay > 0 {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(int(c.Delay / time.Second)))
	}
	return b.String()
}

// OutletSet builds the control command switching one outlet (0 addresses
// all outlets at once). delay applies to RESET cycles only and is ignored
// by the device otherwise.
func OutletSet(outlet int, action Action, delay time.Duration) Command {
	cmd := Control(CmdOutletSet, strconv.Itoa(outlet)+","+string(action))
	cmd.Delay = delay
	return cmd
}

// OutletPowerQuery builds the per-outlet power status query.
func OutletPowerQuery(outlet int) Command {
	return QueryArg(CmdOutletPowerStatus, strconv.Itoa(outlet))
}

// OutletNameSet builds the control command renaming one outlet.
func OutletNameSet(outlet int, name string) Command {
	return Control(CmdOutletNameSet, strconv.Itoa(outlet)+",{"+name+"}")
}

// OutletNameSetAll builds the control command renaming every outlet.
// Names are brace-quoted on the wire so they may contain commas.
func OutletNameSetAll(names []string) Command {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "{" + n + "}"
	}
	return Control(CmdOutletNameSetAll, strings.Join(quoted, ","))
}

// AutoRebootSet builds the control command enabling or disabling the
// device's auto-reboot watchdog.
func AutoRebootSet(enabled bool) Command {
	arg := "0"
	if enabled {
		arg = "1"
	}
	return Control(CmdAutoReboot, arg)
}
