package store

import (
	"encoding/json"
	"testing"

	"github.com/grovetools/homed/errors"
	"github.com/grovetools/homed/pkg/energy"
	"github.com/grovetools/homed/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePatch(t *testing.T) {
	state := models.DefaultState()

	tests := []struct {
		name     string
		path     string
		data     string
		wantCode errors.ErrorCode
		wantType Patch
	}{
		{name: "light", path: "devices.kitchenLights", data: `{"on":true,"brightness":40}`, wantType: LightPatch{}},
		{name: "thermostat", path: "devices.thermostat", data: `{"target":68,"ecoMode":false}`, wantType: ThermostatPatch{}},
		{name: "environment", path: "environment", data: `{"weather":"rainy"}`, wantType: EnvironmentPatch{}},
		{name: "system", path: "system", data: `{"homeAway":"away","armed":true}`, wantType: SystemPatch{}},
		{name: "empty data", path: "devices.kitchenLights", data: `{}`, wantType: LightPatch{}},
		{name: "null data", path: "system", data: `null`, wantType: SystemPatch{}},

		{name: "missing device", path: "devices.nonexistent.field", data: `{"x":1}`, wantCode: errors.ErrCodeInvalidPath},
		{name: "unknown device", path: "devices.garage", data: `{"on":true}`, wantCode: errors.ErrCodeInvalidPath},
		{name: "unknown root", path: "garden", data: `{}`, wantCode: errors.ErrCodeInvalidPath},
		{name: "scalar leaf", path: "devices.kitchenLights.brightness", data: `{}`, wantCode: errors.ErrCodeInvalidPath},
		{name: "devices map", path: "devices", data: `{}`, wantCode: errors.ErrCodeInvalidPath},
		{name: "empty path", path: "", data: `{}`, wantCode: errors.ErrCodeInvalidPath},
		{name: "derived energy", path: "environment.energy", data: `{"current":0}`, wantCode: errors.ErrCodeInvalidInput},

		{name: "unknown key", path: "devices.kitchenLights", data: `{"colour":"red"}`, wantCode: errors.ErrCodeInvalidInput},
		{name: "thermostat key on light", path: "devices.kitchenLights", data: `{"target":70}`, wantCode: errors.ErrCodeInvalidInput},
		{name: "light key on thermostat", path: "devices.thermostat", data: `{"brightness":70}`, wantCode: errors.ErrCodeInvalidInput},
		{name: "wrong type", path: "devices.kitchenLights", data: `{"on":"yes"}`, wantCode: errors.ErrCodeInvalidInput},
		{name: "not an object", path: "system", data: `42`, wantCode: errors.ErrCodeInvalidInput},
		{name: "brightness too high", path: "devices.kitchenLights", data: `{"brightness":101}`, wantCode: errors.ErrCodeInvalidInput},
		{name: "brightness negative", path: "devices.kitchenLights", data: `{"brightness":-1}`, wantCode: errors.ErrCodeInvalidInput},
		{name: "zero bulbs", path: "devices.kitchenLights", data: `{"count":0}`, wantCode: errors.ErrCodeInvalidInput},
		{name: "bad mode", path: "system", data: `{"homeAway":"vacation"}`, wantCode: errors.ErrCodeInvalidInput},
		{name: "energy in environment", path: "environment", data: `{"energy":{"current":1}}`, wantCode: errors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePatch(state, tt.path, json.RawMessage(tt.data))
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errors.GetCode(err))
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, p)
			assert.Equal(t, tt.path, p.Path())
		})
	}
}

func TestParsePatchDoesNotMutate(t *testing.T) {
	state := models.DefaultState()
	before := state.Clone()

	_, err := ParsePatch(state, "devices.kitchenLights", json.RawMessage(`{"on":true,"count":0}`))
	require.Error(t, err)
	assert.Equal(t, before, state)
}

func TestPatchEncodesToWireShape(t *testing.T) {
	on := true
	brightness := 0
	p := LightPatch{ID: "kitchenLights", On: &on, Brightness: &brightness}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"on":true,"brightness":0}`, string(data))

	// The encoded form parses back to the same patch.
	parsed, err := ParsePatch(models.DefaultState(), p.Path(), data)
	require.NoError(t, err)
	assert.Equal(t, p, parsed)
}

func TestNudgeClimate(t *testing.T) {
	s := models.DefaultState()

	nudgeClimate(&s, true)
	assert.InDelta(t, 72.2, s.Environment.Temperature, 1e-9)
	// -0.1 from warming, -0.3 because the thermostat is now cooling, -0.1 for the light.
	assert.InDelta(t, 44.5, s.Environment.Humidity, 1e-9)

	s = models.DefaultState()
	thermo := s.Devices["thermostat"]
	thermo.On = false
	s.Devices["thermostat"] = thermo

	nudgeClimate(&s, false)
	assert.InDelta(t, 71.8, s.Environment.Temperature, 1e-9)
	// +0.1 from cooling, +0.1 for the light, no thermostat effect.
	assert.InDelta(t, 45.2, s.Environment.Humidity, 1e-9)
}

func TestNudgeClimateHeating(t *testing.T) {
	s := models.DefaultState()
	thermo := s.Devices["thermostat"]
	thermo.Target = 80
	s.Devices["thermostat"] = thermo

	nudgeClimate(&s, true)
	// -0.1 from warming, -0.1 for heating, -0.1 for the light.
	assert.InDelta(t, 44.7, s.Environment.Humidity, 1e-9)
}

func TestReflects(t *testing.T) {
	state := models.DefaultState()
	on, off := true, false
	b40 := 40
	hot := 95.0
	away := models.ModeAway

	tests := []struct {
		name  string
		patch Patch
		want  bool
	}{
		{name: "light unchanged", patch: LightPatch{ID: "kitchenLights", On: &off}, want: true},
		{name: "light differs", patch: LightPatch{ID: "kitchenLights", On: &on, Brightness: &b40}, want: false},
		{name: "empty patch", patch: LightPatch{ID: "livingRoomLights"}, want: true},
		{name: "missing device", patch: LightPatch{ID: "garage"}, want: false},
		{name: "system differs", patch: SystemPatch{HomeAway: &away}, want: false},
		{name: "clamped humidity", patch: EnvironmentPatch{Humidity: &hot}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reflects(state, tt.patch))
		})
	}

	// A humidity above the range is reflected once the clamped value is stored.
	st := New(state, energy.New(energy.DefaultTariff()))
	_, err := st.Apply(EnvironmentPatch{Humidity: &hot}, "test")
	require.NoError(t, err)
	assert.True(t, Reflects(st.Get(), EnvironmentPatch{Humidity: &hot}))
}
