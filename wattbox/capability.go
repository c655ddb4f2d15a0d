package wattbox

import "errors"

// Feature names an optional protocol capability whose support varies by
// device model and firmware.
type Feature string

const (
	// FeatureSystemPower is system-wide power monitoring (?PowerStatus).
	FeatureSystemPower Feature = "system-power"
	// FeatureOutletPower is per-outlet power monitoring
	// (?OutletPowerStatus); only metered models carry it.
	FeatureOutletPower Feature = "outlet-power"
	// FeatureUPS is UPS reporting; absent when no UPS is attached.
	FeatureUPS Feature = "ups"
)

// Support is the tri-state verdict for a feature.
type Support int

const (
	// SupportUnknown means the feature has not been probed yet.
	SupportUnknown Support = iota
	// SupportSupported means the probe produced a well-formed reply.
	SupportSupported
	// SupportUnsupported means the device rejected or mangled the probe;
	// capability-gated queries return absent results from then on.
	SupportUnsupported
)

func (s Support) String() string {
	switch s {
	case SupportSupported:
		return "supported"
	case SupportUnsupported:
		return "unsupported"
	}
	return "unknown"
}

// Support returns the cached verdict for a feature. The record lives for
// the session's lifetime; a reconnect starts over at SupportUnknown.
func (c *Client) Support(f Feature) Support {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caps[f]
}

func (c *Client) setSupport(f Feature, s Support) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.caps[f] = s
}

// recordProbe folds the outcome of a feature's query into the capability
// record. The first query of a feature doubles as its probe: an explicit
// device rejection or a reply that fails its schema records
// SupportUnsupported, so later calls short-circuit without wire traffic.
// It reports whether err was consumed as an "unsupported" verdict.
func (c *Client) recordProbe(f Feature, err error) bool {
	if err == nil {
		c.setSupport(f, SupportSupported)
		return false
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) || errors.Is(err, ErrMalformedResponse) {
		if c.Support(f) != SupportSupported {
			c.log.Debug("feature not supported by device", "feature", string(f), "error", err)
			c.setSupport(f, SupportUnsupported)
			return true
		}
	}
	return false
}
