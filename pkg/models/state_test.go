package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsIndependent(t *testing.T) {
	s := DefaultState()
	c := s.Clone()

	d := c.Devices["kitchenLights"]
	d.On = true
	c.Devices["kitchenLights"] = d
	c.System.Armed = true

	assert.False(t, s.Devices["kitchenLights"].On)
	assert.False(t, s.System.Armed)
}

func TestPrimaryThermostat(t *testing.T) {
	s := DefaultState()
	d, ok := s.PrimaryThermostat()
	require.True(t, ok)
	assert.Equal(t, "Main Thermostat", d.Name)

	s.Devices = map[string]Device{
		"zone2": {Kind: KindThermostat, Name: "Upstairs"},
		"zone1": {Kind: KindThermostat, Name: "Downstairs"},
		"lamp":  {Kind: KindLight},
	}
	d, ok = s.PrimaryThermostat()
	require.True(t, ok)
	assert.Equal(t, "Downstairs", d.Name)

	s.Devices = map[string]Device{"lamp": {Kind: KindLight}}
	_, ok = s.PrimaryThermostat()
	assert.False(t, ok)
}

func TestClampHumidity(t *testing.T) {
	assert.Equal(t, MinHumidity, ClampHumidity(10))
	assert.Equal(t, 45.0, ClampHumidity(45))
	assert.Equal(t, MaxHumidity, ClampHumidity(75))
}

func TestDeviceJSONCarriesOnlyItsKind(t *testing.T) {
	s := DefaultState()

	light, err := json.Marshal(s.Devices["kitchenLights"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"light","name":"Kitchen Lights","on":false,"brightness":100,"count":2}`, string(light))

	thermo, err := json.Marshal(s.Devices["thermostat"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"thermostat","name":"Main Thermostat","on":true,"target":72,"current":72,"ecoMode":true}`, string(thermo))
}

func TestNewFrame(t *testing.T) {
	f, err := NewFrame(EventError, ErrorPayload{Message: MsgInvalidUpdate})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"Invalid update path or data"}`, string(f.Data))

	f, err = NewFrame(EventGetState, nil)
	require.NoError(t, err)
	out, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"getState"}`, string(out))
}

func TestHomeAwayValid(t *testing.T) {
	assert.True(t, ModeHome.Valid())
	assert.True(t, ModeAway.Valid())
	assert.False(t, HomeAway("vacation").Valid())
}
