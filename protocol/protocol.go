// Package protocol implements the wire conventions of the WattBox
// Integration Protocol: a line-oriented text protocol where every frame
// begins with a single sigil character identifying its kind.
package protocol

const (
	// Sigils (the leading character of every protocol line)
	SigilQuery       = '?'
	SigilControl     = '!'
	SigilError       = '#'
	SigilUnsolicited = '~'

	// Line terminator sent with every command
	Terminator = "\n"

	// Query command names
	CmdFirmware          = "Firmware"
	CmdHostname          = "Hostname"
	CmdServiceTag        = "ServiceTag"
	CmdModel             = "Model"
	CmdOutletCount       = "OutletCount"
	CmdOutletStatus      = "OutletStatus"
	CmdOutletName        = "OutletName"
	CmdOutletPowerStatus = "OutletPowerStatus"
	CmdPowerStatus       = "PowerStatus"
	CmdAutoReboot        = "AutoReboot"
	CmdUPSStatus         = "UPSStatus"
	CmdUPSConnection     = "UPSConnection"

	// Control command names
	CmdOutletSet        = "OutletSet"
	CmdOutletNameSet    = "OutletNameSet"
	CmdOutletNameSetAll = "OutletNameSetAll"
	CmdReboot           = "Reboot"
	CmdExit             = "Exit"

	// ErrorFrameName is the command-name token carried by error frames
	// ("#Error,<code>").
	ErrorFrameName = "Error"
)

// Login handshake indicators. Prompt substrings vary by firmware revision
// and are configurable at the session layer; these are the stock sets.
var (
	DefaultUsernamePrompts = []string{"login:", "username:", "user:"}
	DefaultPasswordPrompts = []string{"password:", "pass:"}

	// SuccessIndicator is the banner the device prints after a successful
	// login, matched case-insensitively.
	SuccessIndicator = "successfully logged in"

	// RejectIndicators mark an explicit credential rejection.
	RejectIndicators = []string{"invalid", "incorrect"}
)

// Action is an outlet control action accepted by OutletSet.
type Action string

const (
	ActionOn     Action = "ON"
	ActionOff    Action = "OFF"
	ActionToggle Action = "TOGGLE"
	ActionReset  Action = "RESET"
)

// ValidAction reports whether a is one of the actions the device accepts.
func ValidAction(a Action) bool {
	switch a {
	case ActionOn, ActionOff, ActionToggle, ActionReset:
		return true
	}
	return false
}

// MsgKind identifies the nature of a device line, derived from its sigil.
type MsgKind int

const (
	MsgUnknown     MsgKind = iota // no recognized sigil
	MsgQueryReply                 // '?' reply to a query command
	MsgControlAck                 // '!' echo acknowledging a control command
	MsgError                      // '#' device-reported error frame
	MsgUnsolicited                // '~' device-initiated notification
)

// CmdKind distinguishes read-only queries from state-changing controls.
type CmdKind int

const (
	KindQuery CmdKind = iota
	KindControl
)
