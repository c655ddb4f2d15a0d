package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bballdavis/wattbox-go/protocol"
)

func mustParse(t *testing.T, line string) protocol.Message {
	t.Helper()
	msg, err := protocol.Parse(line)
	require.NoError(t, err)
	return msg
}

func TestParseOutletPower(t *testing.T) {
	reading, err := protocol.ParseOutletPower(mustParse(t, "?OutletPowerStatus=1,1.01,0.02,116.50"))
	require.NoError(t, err)
	assert.Equal(t, 1, reading.Outlet)
	assert.InDelta(t, 1.01, reading.Watts, 1e-9)
	assert.InDelta(t, 0.02, reading.Amps, 1e-9)
	assert.InDelta(t, 116.50, reading.Volts, 1e-9)

	t.Run("wrong field count", func(t *testing.T) {
		_, err := protocol.ParseOutletPower(mustParse(t, "?OutletPowerStatus=1,1.01"))
		assert.ErrorIs(t, err, protocol.ErrMalformed)
	})

	t.Run("non-numeric field", func(t *testing.T) {
		_, err := protocol.ParseOutletPower(mustParse(t, "?OutletPowerStatus=1,watts,0.02,116.50"))
		assert.ErrorIs(t, err, protocol.ErrMalformed)
	})

	t.Run("reply for a different command", func(t *testing.T) {
		_, err := protocol.ParseOutletPower(mustParse(t, "?OutletName={A},{B},{C},{D}"))
		assert.ErrorIs(t, err, protocol.ErrMalformed)
	})
}

func TestParsePowerStatus(t *testing.T) {
	// System power order differs from per-outlet order: amps first.
	status, err := protocol.ParsePowerStatus(mustParse(t, "?PowerStatus=0.52,60.00,116.00,1"))
	require.NoError(t, err)
	assert.InDelta(t, 0.52, status.Amps, 1e-9)
	assert.InDelta(t, 60.00, status.Watts, 1e-9)
	assert.InDelta(t, 116.00, status.Volts, 1e-9)
	assert.True(t, status.SafeVoltage)

	t.Run("unsafe voltage flag", func(t *testing.T) {
		status, err := protocol.ParsePowerStatus(mustParse(t, "?PowerStatus=0.52,60.00,90.00,0"))
		require.NoError(t, err)
		assert.False(t, status.SafeVoltage)
	})
}

func TestParseUPSStatus(t *testing.T) {
	status, err := protocol.ParseUPSStatus(mustParse(t, "?UPSStatus=50,0,Good,False,25,True,False"))
	require.NoError(t, err)
	assert.Equal(t, protocol.UPSStatus{
		BatteryCharge:  50,
		BatteryLoad:    0,
		BatteryHealth:  "Good",
		PowerLost:      false,
		BatteryRuntime: 25,
		AlarmEnabled:   true,
		AlarmMuted:     false,
	}, status)

	t.Run("short reply", func(t *testing.T) {
		_, err := protocol.ParseUPSStatus(mustParse(t, "?UPSStatus=50,0,Good"))
		assert.ErrorIs(t, err, protocol.ErrMalformed)
	})
}

func TestParseOutletStatus(t *testing.T) {
	states, err := protocol.ParseOutletStatus(mustParse(t, "?OutletStatus=1,0,1,1,0"))
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, true, false}, states)

	t.Run("non-binary field", func(t *testing.T) {
		_, err := protocol.ParseOutletStatus(mustParse(t, "?OutletStatus=1,maybe,0"))
		assert.ErrorIs(t, err, protocol.ErrMalformed)
	})
}

func TestParseOutletNames(t *testing.T) {
	names, err := protocol.ParseOutletNames(mustParse(t, "?OutletName={Router},{Rack, left},{AV}"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Router", "Rack, left", "AV"}, names)
}

func TestParseScalars(t *testing.T) {
	count, err := protocol.ParseScalarInt(mustParse(t, "?OutletCount=12"), protocol.CmdOutletCount)
	require.NoError(t, err)
	assert.Equal(t, 12, count)

	t.Run("extra trailing fields tolerated", func(t *testing.T) {
		count, err := protocol.ParseScalarInt(mustParse(t, "?OutletCount=12,0"), protocol.CmdOutletCount)
		require.NoError(t, err)
		assert.Equal(t, 12, count)
	})

	connected, err := protocol.ParseScalarBool(mustParse(t, "?UPSConnection=1"), protocol.CmdUPSConnection)
	require.NoError(t, err)
	assert.True(t, connected)

	enabled, err := protocol.ParseScalarBool(mustParse(t, "?AutoReboot=0"), protocol.CmdAutoReboot)
	require.NoError(t, err)
	assert.False(t, enabled)

	firmware, err := protocol.ParseScalarString(mustParse(t, "?Firmware=2.4.0"), protocol.CmdFirmware)
	require.NoError(t, err)
	assert.Equal(t, "2.4.0", firmware)
}

func TestOutletCountFromModel(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"WB-800-IPVM-12", 12},
		{"WB-300-IPV-8", 8},
		{"WB-800VPS-IPVM-18", 18},
		{"WB150", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, protocol.OutletCountFromModel(tt.model), "model %q", tt.model)
	}
}
