package store

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/grovetools/homed/errors"
	"github.com/grovetools/homed/pkg/models"
)

// Patch is a typed, shallow-merge update to one object of the state.
// Nil fields are left untouched.
type Patch interface {
	// Path is the wire address of the patched object.
	Path() string
	// check validates the patch against the current state without
	// modifying it.
	check(s models.State) error
	// merge applies an already checked patch.
	merge(s *models.State)
}

// LightPatch updates a lighting device.
type LightPatch struct {
	ID         string  `json:"-"`
	On         *bool   `json:"on,omitempty"`
	Brightness *int    `json:"brightness,omitempty"`
	Count      *int    `json:"count,omitempty"`
	Name       *string `json:"name,omitempty"`
}

func (p LightPatch) Path() string { return "devices." + p.ID }

func (p LightPatch) check(s models.State) error {
	d, ok := s.Devices[p.ID]
	if !ok {
		return errors.InvalidPath(p.Path())
	}
	if !d.IsLight() {
		return errors.InvalidInput(p.Path(), "device is not a light")
	}
	if p.Brightness != nil && (*p.Brightness < 0 || *p.Brightness > 100) {
		return errors.InvalidInput(p.Path(), "brightness must be between 0 and 100")
	}
	if p.Count != nil && *p.Count < 1 {
		return errors.InvalidInput(p.Path(), "count must be at least 1")
	}
	if p.Name != nil && *p.Name == "" {
		return errors.InvalidInput(p.Path(), "name must not be empty")
	}
	return nil
}

func (p LightPatch) merge(s *models.State) {
	d := s.Devices[p.ID]
	if p.On != nil {
		d.On = *p.On
	}
	if p.Brightness != nil {
		d.Brightness = *p.Brightness
	}
	if p.Count != nil {
		d.Count = *p.Count
	}
	if p.Name != nil {
		d.Name = *p.Name
	}
	s.Devices[p.ID] = d
}

// ThermostatPatch updates a thermostat.
type ThermostatPatch struct {
	ID      string   `json:"-"`
	On      *bool    `json:"on,omitempty"`
	Target  *float64 `json:"target,omitempty"`
	Current *float64 `json:"current,omitempty"`
	EcoMode *bool    `json:"ecoMode,omitempty"`
	Name    *string  `json:"name,omitempty"`
}

func (p ThermostatPatch) Path() string { return "devices." + p.ID }

func (p ThermostatPatch) check(s models.State) error {
	d, ok := s.Devices[p.ID]
	if !ok {
		return errors.InvalidPath(p.Path())
	}
	if !d.IsThermostat() {
		return errors.InvalidInput(p.Path(), "device is not a thermostat")
	}
	if p.Name != nil && *p.Name == "" {
		return errors.InvalidInput(p.Path(), "name must not be empty")
	}
	return nil
}

func (p ThermostatPatch) merge(s *models.State) {
	d := s.Devices[p.ID]
	if p.On != nil {
		d.On = *p.On
	}
	if p.Target != nil {
		d.Target = *p.Target
	}
	if p.Current != nil {
		d.Current = *p.Current
	}
	if p.EcoMode != nil {
		d.EcoMode = *p.EcoMode
	}
	if p.Name != nil {
		d.Name = *p.Name
	}
	s.Devices[p.ID] = d
}

// EnvironmentPatch updates the simulated climate. Energy is derived and
// cannot be patched.
type EnvironmentPatch struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Weather     *string  `json:"weather,omitempty"`
}

func (p EnvironmentPatch) Path() string { return "environment" }

func (p EnvironmentPatch) check(models.State) error { return nil }

func (p EnvironmentPatch) merge(s *models.State) {
	if p.Temperature != nil {
		s.Environment.Temperature = *p.Temperature
	}
	if p.Humidity != nil {
		s.Environment.Humidity = models.ClampHumidity(*p.Humidity)
	}
	if p.Weather != nil {
		s.Environment.Weather = *p.Weather
	}
}

// SystemPatch updates the home-wide flags.
type SystemPatch struct {
	HomeAway *models.HomeAway `json:"homeAway,omitempty"`
	Armed    *bool            `json:"armed,omitempty"`
}

func (p SystemPatch) Path() string { return "system" }

func (p SystemPatch) check(models.State) error {
	if p.HomeAway != nil && !p.HomeAway.Valid() {
		return errors.InvalidInput(p.Path(), "homeAway must be home or away")
	}
	return nil
}

func (p SystemPatch) merge(s *models.State) {
	if p.HomeAway != nil {
		s.System.HomeAway = *p.HomeAway
	}
	if p.Armed != nil {
		s.System.Armed = *p.Armed
	}
}

// ParsePatch resolves a dot-separated path against s and decodes data into
// the typed patch for the addressed object. It never modifies s.
//
// Addressable objects are devices.<id>, environment and system. Unknown
// roots, missing device ids and scalar leaves are InvalidPath; data that
// does not fit the addressed object is InvalidInput.
func ParsePatch(s models.State, path string, data json.RawMessage) (Patch, error) {
	segments := strings.Split(path, ".")

	var p Patch
	switch {
	case len(segments) == 1 && segments[0] == "environment":
		var ep EnvironmentPatch
		if err := decodeStrict(path, data, &ep); err != nil {
			return nil, err
		}
		p = ep

	case len(segments) == 1 && segments[0] == "system":
		var sp SystemPatch
		if err := decodeStrict(path, data, &sp); err != nil {
			return nil, err
		}
		p = sp

	case len(segments) == 2 && segments[0] == "environment" && segments[1] == "energy":
		return nil, errors.InvalidInput(path, "energy is derived from device state")

	case len(segments) == 2 && segments[0] == "devices":
		id := segments[1]
		device, ok := s.Devices[id]
		if !ok {
			return nil, errors.InvalidPath(path)
		}
		switch device.Kind {
		case models.KindLight:
			lp := LightPatch{ID: id}
			if err := decodeStrict(path, data, &lp); err != nil {
				return nil, err
			}
			p = lp
		case models.KindThermostat:
			tp := ThermostatPatch{ID: id}
			if err := decodeStrict(path, data, &tp); err != nil {
				return nil, err
			}
			p = tp
		default:
			return nil, errors.InvalidPath(path)
		}

	default:
		return nil, errors.InvalidPath(path)
	}

	if err := p.check(s); err != nil {
		return nil, err
	}
	return p, nil
}

// Reflects reports whether the object p addresses already holds every
// value p would set, so that applying p to s changes nothing there.
func Reflects(s models.State, p Patch) bool {
	patched := s.Clone()
	p.merge(&patched)
	switch p := p.(type) {
	case LightPatch:
		return deviceEqual(s, patched, p.ID)
	case ThermostatPatch:
		return deviceEqual(s, patched, p.ID)
	case EnvironmentPatch:
		return s.Environment == patched.Environment
	case SystemPatch:
		return s.System == patched.System
	}
	return false
}

func deviceEqual(a, b models.State, id string) bool {
	da, ok := a.Devices[id]
	return ok && da == b.Devices[id]
}

// decodeStrict decodes a JSON object, rejecting keys the target does not
// declare. Empty or null data is an empty patch.
func decodeStrict(path string, data json.RawMessage, target interface{}) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid data for "+path).
			WithDetail("path", path)
	}
	return nil
}

// nudgeClimate simulates the effect of a light being switched on or off:
// a small temperature change and the resulting humidity drift, bounded to
// the humidity range.
func nudgeClimate(s *models.State, on bool) {
	tempDelta := -0.2
	if on {
		tempDelta = 0.2
	}
	s.Environment.Temperature += tempDelta

	humidityDelta := -tempDelta * 0.5
	if t, ok := s.PrimaryThermostat(); ok && t.On {
		if s.Environment.Temperature > t.Target {
			humidityDelta -= 0.3 // cooling
		} else {
			humidityDelta -= 0.1 // heating
		}
	}
	if on {
		humidityDelta -= 0.1
	} else {
		humidityDelta += 0.1
	}

	s.Environment.Humidity = models.ClampHumidity(s.Environment.Humidity + humidityDelta)
}
