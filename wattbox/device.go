package wattbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bballdavis/wattbox-go/protocol"
)

// SystemInfo is the device identity block.
type SystemInfo struct {
	Firmware    string `json:"firmware"`
	Hostname    string `json:"hostname"`
	ServiceTag  string `json:"service_tag"`
	Model       string `json:"model"`
	OutletCount int    `json:"outlet_count"`
}

// Outlet is one outlet's state as assembled by DeviceInfo.
type Outlet struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	On    bool   `json:"on"`
	// Power is nil when per-outlet metering is unsupported or the
	// outlet's query failed.
	Power *protocol.OutletPower `json:"power,omitempty"`
}

// DeviceInfo is the aggregate state of one device. Optional sections are
// nil when the device lacks the feature.
type DeviceInfo struct {
	System       SystemInfo            `json:"system"`
	Outlets      []Outlet              `json:"outlets"`
	Power        *protocol.PowerStatus `json:"power,omitempty"`
	UPS          *protocol.UPSStatus   `json:"ups,omitempty"`
	UPSConnected bool                  `json:"ups_connected"`
	AutoReboot   bool                  `json:"auto_reboot"`
}

func (c *Client) queryString(ctx context.Context, name string) (string, error) {
	return sendParsed(ctx, c, protocol.Query(name), func(msg protocol.Message) (string, error) {
		return protocol.ParseScalarString(msg, name)
	})
}

// Firmware returns the firmware revision, cached for the session.
func (c *Client) Firmware(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.firmware
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}
	fw, err := c.queryString(ctx, protocol.CmdFirmware)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.firmware = fw
	c.mu.Unlock()
	return fw, nil
}

// Model returns the device model, cached for the session.
func (c *Client) Model(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.model
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}
	model, err := c.queryString(ctx, protocol.CmdModel)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
	return model, nil
}

// Hostname returns the device's configured hostname.
func (c *Client) Hostname(ctx context.Context) (string, error) {
	return c.queryString(ctx, protocol.CmdHostname)
}

// ServiceTag returns the device's service tag.
func (c *Client) ServiceTag(ctx context.Context) (string, error) {
	return c.queryString(ctx, protocol.CmdServiceTag)
}

// OutletCount returns the number of outlets, cached for the session.
// Devices with older firmware mangle the ?OutletCount reply; the count
// is then recovered from the model name suffix ("WB-800-IPVM-12" has 12
// outlets) or, failing that, from the width of the outlet status list.
func (c *Client) OutletCount(ctx context.Context) (int, error) {
	c.mu.Lock()
	cached := c.outletCount
	c.mu.Unlock()
	if cached > 0 {
		return cached, nil
	}

	count, err := sendParsed(ctx, c, protocol.Query(protocol.CmdOutletCount), func(msg protocol.Message) (int, error) {
		return protocol.ParseScalarInt(msg, protocol.CmdOutletCount)
	})
	if err != nil {
		if errors.Is(err, ErrClosed) || errors.Is(err, ErrNotConnected) || ctx.Err() != nil {
			return 0, err
		}
		c.log.Warn("outlet count query failed, using fallbacks", "error", err)
		count = 0
	}
	if count <= 0 {
		if model, merr := c.Model(ctx); merr == nil {
			count = protocol.OutletCountFromModel(model)
		}
	}
	if count <= 0 {
		if states, serr := c.OutletStatus(ctx); serr == nil {
			count = len(states)
		}
	}
	if count <= 0 {
		return 0, fmt.Errorf("%w: cannot determine outlet count", ErrMalformedResponse)
	}

	c.mu.Lock()
	c.outletCount = count
	c.mu.Unlock()
	return count, nil
}

// OutletStatus returns the on/off state of every outlet, in outlet order.
func (c *Client) OutletStatus(ctx context.Context) ([]bool, error) {
	return sendParsed(ctx, c, protocol.Query(protocol.CmdOutletStatus), protocol.ParseOutletStatus)
}

// OutletNames returns the configured outlet names, in outlet order.
func (c *Client) OutletNames(ctx context.Context) ([]string, error) {
	return sendParsed(ctx, c, protocol.Query(protocol.CmdOutletName), protocol.ParseOutletNames)
}

// OutletPower returns the power reading for one outlet (1-based).
//
// The first such query in a session probes the outlet-power capability:
// if the device rejects it, the feature is recorded unsupported and this
// and all later calls return (nil, nil) without wire traffic.
func (c *Client) OutletPower(ctx context.Context, outlet int) (*protocol.OutletPower, error) {
	if outlet < 1 {
		return nil, fmt.Errorf("invalid outlet number %d", outlet)
	}
	if c.Support(FeatureOutletPower) == SupportUnsupported {
		return nil, nil
	}

	reading, err := sendParsed(ctx, c, protocol.OutletPowerQuery(outlet), protocol.ParseOutletPower)
	if err != nil {
		if c.recordProbe(FeatureOutletPower, err) {
			return nil, nil
		}
		return nil, err
	}
	c.recordProbe(FeatureOutletPower, nil)
	return &reading, nil
}

// AllOutletPower collects power readings for every outlet. The next
// outlet's query is issued as soon as the previous one resolves; there
// is no fixed inter-command delay. The result always covers outlets
// 1..count: a failed outlet occupies its slot with a nil reading, and an
// unsupported-feature verdict fills the whole map without wire traffic.
func (c *Client) AllOutletPower(ctx context.Context) (map[int]*protocol.OutletPower, error) {
	count, err := c.OutletCount(ctx)
	if err != nil {
		return nil, err
	}

	readings := make(map[int]*protocol.OutletPower, count)
	for outlet := 1; outlet <= count; outlet++ {
		if err := ctx.Err(); err != nil {
			for ; outlet <= count; outlet++ {
				readings[outlet] = nil
			}
			return readings, err
		}
		if c.Support(FeatureOutletPower) == SupportUnsupported {
			readings[outlet] = nil
			continue
		}
		reading, err := c.OutletPower(ctx, outlet)
		if err != nil {
			c.log.Warn("outlet power query failed", "outlet", outlet, "error", err)
			readings[outlet] = nil
			continue
		}
		readings[outlet] = reading
	}
	return readings, nil
}

// PowerStatus returns the system-wide power reading, or (nil, nil) when
// the device model lacks system power monitoring.
func (c *Client) PowerStatus(ctx context.Context) (*protocol.PowerStatus, error) {
	if c.Support(FeatureSystemPower) == SupportUnsupported {
		return nil, nil
	}
	status, err := sendParsed(ctx, c, protocol.Query(protocol.CmdPowerStatus), protocol.ParsePowerStatus)
	if err != nil {
		if c.recordProbe(FeatureSystemPower, err) {
			return nil, nil
		}
		return nil, err
	}
	c.recordProbe(FeatureSystemPower, nil)
	return &status, nil
}

// UPSConnected reports whether a UPS is attached. This doubles as the
// UPS capability probe: a rejection or a "not connected" reply records
// the feature unsupported for the session.
func (c *Client) UPSConnected(ctx context.Context) (bool, error) {
	if c.Support(FeatureUPS) == SupportUnsupported {
		return false, nil
	}
	connected, err := sendParsed(ctx, c, protocol.Query(protocol.CmdUPSConnection), func(msg protocol.Message) (bool, error) {
		return protocol.ParseScalarBool(msg, protocol.CmdUPSConnection)
	})
	if err != nil {
		if c.recordProbe(FeatureUPS, err) {
			return false, nil
		}
		return false, err
	}
	if !connected {
		c.setSupport(FeatureUPS, SupportUnsupported)
		return false, nil
	}
	c.setSupport(FeatureUPS, SupportSupported)
	return true, nil
}

// UPSStatus returns the attached UPS's state, or (nil, nil) when no UPS
// is present or the device lacks UPS reporting.
func (c *Client) UPSStatus(ctx context.Context) (*protocol.UPSStatus, error) {
	switch c.Support(FeatureUPS) {
	case SupportUnsupported:
		return nil, nil
	case SupportUnknown:
		connected, err := c.UPSConnected(ctx)
		if err != nil {
			return nil, err
		}
		if !connected {
			return nil, nil
		}
	}

	status, err := sendParsed(ctx, c, protocol.Query(protocol.CmdUPSStatus), protocol.ParseUPSStatus)
	if err != nil {
		if c.recordProbe(FeatureUPS, err) {
			return nil, nil
		}
		return nil, err
	}
	return &status, nil
}

// AutoReboot reports whether the device's auto-reboot watchdog is on.
func (c *Client) AutoReboot(ctx context.Context) (bool, error) {
	return sendParsed(ctx, c, protocol.Query(protocol.CmdAutoReboot), func(msg protocol.Message) (bool, error) {
		return protocol.ParseScalarBool(msg, protocol.CmdAutoReboot)
	})
}

// SetAutoReboot switches the auto-reboot watchdog.
func (c *Client) SetAutoReboot(ctx context.Context, enabled bool) error {
	return c.control(ctx, protocol.AutoRebootSet(enabled))
}

// SetOutlet applies an action to one outlet (1-based; 0 addresses every
// outlet). delay applies to RESET cycles and is sent as whole seconds.
func (c *Client) SetOutlet(ctx context.Context, outlet int, action protocol.Action, delay time.Duration) error {
	if outlet < 0 {
		return fmt.Errorf("invalid outlet number %d", outlet)
	}
	if !protocol.ValidAction(action) {
		return fmt.Errorf("invalid outlet action %q", action)
	}
	return c.control(ctx, protocol.OutletSet(outlet, action, delay))
}

// OutletOn switches one outlet on.
func (c *Client) OutletOn(ctx context.Context, outlet int) error {
	return c.SetOutlet(ctx, outlet, protocol.ActionOn, 0)
}

// OutletOff switches one outlet off.
func (c *Client) OutletOff(ctx context.Context, outlet int) error {
	return c.SetOutlet(ctx, outlet, protocol.ActionOff, 0)
}

// OutletToggle flips one outlet.
func (c *Client) OutletToggle(ctx context.Context, outlet int) error {
	return c.SetOutlet(ctx, outlet, protocol.ActionToggle, 0)
}

// OutletReset power-cycles one outlet, optionally after a delay.
func (c *Client) OutletReset(ctx context.Context, outlet int, delay time.Duration) error {
	return c.SetOutlet(ctx, outlet, protocol.ActionReset, delay)
}

// ResetAllOutlets power-cycles every outlet.
func (c *Client) ResetAllOutlets(ctx context.Context, delay time.Duration) error {
	return c.SetOutlet(ctx, 0, protocol.ActionReset, delay)
}

// SetOutletName renames one outlet.
func (c *Client) SetOutletName(ctx context.Context, outlet int, name string) error {
	if outlet < 1 {
		return fmt.Errorf("invalid outlet number %d", outlet)
	}
	return c.control(ctx, protocol.OutletNameSet(outlet, name))
}

// SetOutletNames renames every outlet at once.
func (c *Client) SetOutletNames(ctx context.Context, names []string) error {
	return c.control(ctx, protocol.OutletNameSetAll(names))
}

// Reboot restarts the device itself. The session usually dies with it.
func (c *Client) Reboot(ctx context.Context) error {
	return c.control(ctx, protocol.Control(protocol.CmdReboot, ""))
}

// Ping verifies the session end to end with a cheap query.
func (c *Client) Ping(ctx context.Context) bool {
	_, err := c.Model(ctx)
	return err == nil
}

// control sends a state-changing command and verifies the device echoed
// it back as a control acknowledgement.
func (c *Client) control(ctx context.Context, cmd protocol.Command) error {
	_, err := sendParsed(ctx, c, cmd, func(msg protocol.Message) (struct{}, error) {
		if msg.Kind != protocol.MsgControlAck {
			return struct{}{}, fmt.Errorf("%w: %s acknowledged with kind %d", ErrMalformedResponse, cmd.Name, msg.Kind)
		}
		return struct{}{}, nil
	})
	return err
}

// DeviceInfo assembles the full device picture: identity, outlet states
// and names, and the optional power and UPS sections. Sections the
// device cannot answer come back absent rather than failing the whole
// collection. Set includePower to also collect per-outlet readings.
func (c *Client) DeviceInfo(ctx context.Context, includePower bool) (*DeviceInfo, error) {
	count, err := c.OutletCount(ctx)
	if err != nil {
		return nil, err
	}

	info := &DeviceInfo{}
	if info.System.Firmware, err = c.Firmware(ctx); err != nil {
		return nil, err
	}
	if info.System.Hostname, err = c.Hostname(ctx); err != nil {
		return nil, err
	}
	if info.System.ServiceTag, err = c.ServiceTag(ctx); err != nil {
		return nil, err
	}
	if info.System.Model, err = c.Model(ctx); err != nil {
		return nil, err
	}
	info.System.OutletCount = count

	states, err := c.OutletStatus(ctx)
	if err != nil {
		c.log.Warn("outlet status unavailable", "error", err)
		states = nil
	}
	names, err := c.OutletNames(ctx)
	if err != nil {
		c.log.Warn("outlet names unavailable", "error", err)
		names = nil
	}

	var readings map[int]*protocol.OutletPower
	if includePower {
		if readings, err = c.AllOutletPower(ctx); err != nil {
			return nil, err
		}
	}

	info.Outlets = make([]Outlet, count)
	for i := range info.Outlets {
		o := Outlet{Index: i + 1, Name: "Outlet " + strconv.Itoa(i+1)}
		if i < len(names) && names[i] != "" {
			o.Name = names[i]
		}
		if i < len(states) {
			o.On = states[i]
		}
		o.Power = readings[o.Index]
		info.Outlets[i] = o
	}

	if info.Power, err = c.PowerStatus(ctx); err != nil {
		return nil, err
	}
	if info.UPSConnected, err = c.UPSConnected(ctx); err != nil {
		return nil, err
	}
	if info.UPSConnected {
		if info.UPS, err = c.UPSStatus(ctx); err != nil {
			return nil, err
		}
	}
	if info.AutoReboot, err = c.AutoReboot(ctx); err != nil {
		c.log.Warn("auto reboot status unavailable", "error", err)
		info.AutoReboot = false
	}

	return info, nil
}
