package protocol

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// OutletPower is a per-outlet power reading
// ("?OutletPowerStatus=1,1.01,0.02,116.50").
type OutletPower struct {
	Outlet int     `json:"outlet"`
	Watts  float64 `json:"watts"`
	Amps   float64 `json:"amps"`
	Volts  float64 `json:"volts"`
}

// PowerStatus is the system-wide power reading
// ("?PowerStatus=0.52,60.00,116.00,1"). Note the field order differs
// from OutletPower: amps come first here.
type PowerStatus struct {
	Amps        float64 `json:"amps"`
	Watts       float64 `json:"watts"`
	Volts       float64 `json:"volts"`
	SafeVoltage bool    `json:"safe_voltage"`
}

// UPSStatus reports the attached UPS
// ("?UPSStatus=50,0,Good,False,25,True,False").
type UPSStatus struct {
	BatteryCharge  int    `json:"battery_charge"`  // percent
	BatteryLoad    int    `json:"battery_load"`    // percent
	BatteryHealth  string `json:"battery_health"`
	PowerLost      bool   `json:"power_lost"`
	BatteryRuntime int    `json:"battery_runtime"` // minutes
	AlarmEnabled   bool   `json:"alarm_enabled"`
	AlarmMuted     bool   `json:"alarm_muted"`
}

func schemaErr(name string, msg Message, detail string) error {
	return fmt.Errorf("%w: %s reply %v: %s", ErrMalformed, name, msg.Fields, detail)
}

func expectReply(msg Message, name string, fields int) error {
	if msg.Name != name {
		return schemaErr(name, msg, "reply is for "+msg.Name)
	}
	if fields > 0 && len(msg.Fields) != fields {
		return schemaErr(name, msg, fmt.Sprintf("want %d fields, got %d", fields, len(msg.Fields)))
	}
	return nil
}

func parseFloatField(name string, msg Message, i int) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(msg.Fields[i]), 64)
	if err != nil {
		return 0, schemaErr(name, msg, "field "+strconv.Itoa(i)+" is not numeric")
	}
	return v, nil
}

func parseIntField(name string, msg Message, i int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(msg.Fields[i]))
	if err != nil {
		return 0, schemaErr(name, msg, "field "+strconv.Itoa(i)+" is not an integer")
	}
	return v, nil
}

func parseBoolWord(name string, msg Message, i int) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(msg.Fields[i])) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, schemaErr(name, msg, "field "+strconv.Itoa(i)+" is not a boolean")
}

// ParseOutletPower decodes a per-outlet power reply. The positional
// order is outlet index, watts, amps, volts.
func ParseOutletPower(msg Message) (OutletPower, error) {
	if err := expectReply(msg, CmdOutletPowerStatus, 4); err != nil {
		return OutletPower{}, err
	}
	outlet, err := parseIntField(CmdOutletPowerStatus, msg, 0)
	if err != nil {
		return OutletPower{}, err
	}
	var vals [3]float64
	for i := range vals {
		if vals[i], err = parseFloatField(CmdOutletPowerStatus, msg, i+1); err != nil {
			return OutletPower{}, err
		}
	}
	return OutletPower{Outlet: outlet, Watts: vals[0], Amps: vals[1], Volts: vals[2]}, nil
}

// ParsePowerStatus decodes the system power reply: amps, watts, volts,
// safe-voltage flag.
func ParsePowerStatus(msg Message) (PowerStatus, error) {
	if err := expectReply(msg, CmdPowerStatus, 4); err != nil {
		return PowerStatus{}, err
	}
	var vals [3]float64
	var err error
	for i := range vals {
		if vals[i], err = parseFloatField(CmdPowerStatus, msg, i); err != nil {
			return PowerStatus{}, err
		}
	}
	safe, err := parseBoolWord(CmdPowerStatus, msg, 3)
	if err != nil {
		return PowerStatus{}, err
	}
	return PowerStatus{Amps: vals[0], Watts: vals[1], Volts: vals[2], SafeVoltage: safe}, nil
}

// ParseUPSStatus decodes the seven-field UPS reply.
func ParseUPSStatus(msg Message) (UPSStatus, error) {
	if err := expectReply(msg, CmdUPSStatus, 7); err != nil {
		return UPSStatus{}, err
	}
	var s UPSStatus
	var err error
	if s.BatteryCharge, err = parseIntField(CmdUPSStatus, msg, 0); err != nil {
		return UPSStatus{}, err
	}
	if s.BatteryLoad, err = parseIntField(CmdUPSStatus, msg, 1); err != nil {
		return UPSStatus{}, err
	}
	s.BatteryHealth = strings.TrimSpace(msg.Fields[2])
	if s.PowerLost, err = parseBoolWord(CmdUPSStatus, msg, 3); err != nil {
		return UPSStatus{}, err
	}
	if s.BatteryRuntime, err = parseIntField(CmdUPSStatus, msg, 4); err != nil {
		return UPSStatus{}, err
	}
	if s.AlarmEnabled, err = parseBoolWord(CmdUPSStatus, msg, 5); err != nil {
		return UPSStatus{}, err
	}
	if s.AlarmMuted, err = parseBoolWord(CmdUPSStatus, msg, 6); err != nil {
		return UPSStatus{}, err
	}
	return s, nil
}

// ParseOutletStatus decodes the on/off state list ("?OutletStatus=1,0,1").
func ParseOutletStatus(msg Message) ([]bool, error) {
	if err := expectReply(msg, CmdOutletStatus, 0); err != nil {
		return nil, err
	}
	states := make([]bool, len(msg.Fields))
	for i := range msg.Fields {
		v, err := parseBoolWord(CmdOutletStatus, msg, i)
		if err != nil {
			return nil, err
		}
		states[i] = v
	}
	return states, nil
}

// ParseOutletNames decodes the brace-quoted name list
// ("?OutletName={Router},{Rack, left}").
func ParseOutletNames(msg Message) ([]string, error) {
	if err := expectReply(msg, CmdOutletName, 0); err != nil {
		return nil, err
	}
	return msg.Fields, nil
}

// ParseScalarInt decodes a single-integer reply such as OutletCount.
// Extra trailing fields are tolerated; only the first is read.
func ParseScalarInt(msg Message, name string) (int, error) {
	if err := expectReply(msg, name, 0); err != nil {
		return 0, err
	}
	if len(msg.Fields) == 0 {
		return 0, schemaErr(name, msg, "empty payload")
	}
	return parseIntField(name, msg, 0)
}

// ParseScalarBool decodes a single 0/1 reply such as UPSConnection or
// AutoReboot.
func ParseScalarBool(msg Message, name string) (bool, error) {
	if err := expectReply(msg, name, 0); err != nil {
		return false, err
	}
	if len(msg.Fields) == 0 {
		return false, schemaErr(name, msg, "empty payload")
	}
	return parseBoolWord(name, msg, 0)
}

// ParseScalarString decodes a free-text reply such as Firmware or Model.
// The payload is taken verbatim, commas included.
func ParseScalarString(msg Message, name string) (string, error) {
	if err := expectReply(msg, name, 0); err != nil {
		return "", err
	}
	return strings.Join(msg.Fields, ","), nil
}

var modelSuffix = regexp.MustCompile(`-(\d+)$`)

// OutletCountFromModel extracts the outlet count embedded in a model
// name ("WB-800-IPVM-12" has 12 outlets). Returns 0 when the model name
// carries no such suffix.
func OutletCountFromModel(model string) int {
	m := modelSuffix.FindStringSubmatch(strings.TrimSpace(model))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
