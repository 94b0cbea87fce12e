package models

import (
	"encoding/json"
	"sort"
)

// DeviceKind identifies which capabilities a device exposes.
type DeviceKind string

const (
	KindLight      DeviceKind = "light"
	KindThermostat DeviceKind = "thermostat"
)

// HomeAway is the occupancy mode of the home.
type HomeAway string

const (
	ModeHome HomeAway = "home"
	ModeAway HomeAway = "away"
)

// Valid reports whether m is a known occupancy mode.
func (m HomeAway) Valid() bool {
	return m == ModeHome || m == ModeAway
}

// Humidity bounds applied on every environment mutation.
const (
	MinHumidity = 30.0
	MaxHumidity = 60.0
)

// Device is the simulated state of a single device. Only the fields that
// apply to the device's Kind are meaningful.
type Device struct {
	Kind DeviceKind `json:"kind"`
	Name string     `json:"name"`
	On   bool       `json:"on"`

	// Light
	Brightness int `json:"brightness"`
	Count      int `json:"count"`

	// Thermostat, in °F
	Target  float64 `json:"target"`
	Current float64 `json:"current"`
	EcoMode bool    `json:"ecoMode"`
}

// IsLight reports whether the device is a lighting device.
func (d Device) IsLight() bool { return d.Kind == KindLight }

// IsThermostat reports whether the device is a thermostat.
func (d Device) IsThermostat() bool { return d.Kind == KindThermostat }

// MarshalJSON emits only the fields of the device's kind, so lights never
// carry a thermostat target and vice versa.
func (d Device) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case KindLight:
		return json.Marshal(struct {
			Kind       DeviceKind `json:"kind"`
			Name       string     `json:"name"`
			On         bool       `json:"on"`
			Brightness int        `json:"brightness"`
			Count      int        `json:"count"`
		}{d.Kind, d.Name, d.On, d.Brightness, d.Count})
	case KindThermostat:
		return json.Marshal(struct {
			Kind    DeviceKind `json:"kind"`
			Name    string     `json:"name"`
			On      bool       `json:"on"`
			Target  float64    `json:"target"`
			Current float64    `json:"current"`
			EcoMode bool       `json:"ecoMode"`
		}{d.Kind, d.Name, d.On, d.Target, d.Current, d.EcoMode})
	}
	return json.Marshal(struct {
		Kind DeviceKind `json:"kind"`
		Name string     `json:"name"`
		On   bool       `json:"on"`
	}{d.Kind, d.Name, d.On})
}

// Costs are projections derived from the current draw, in dollars.
type Costs struct {
	Hourly  float64 `json:"hourly"`
	Daily   float64 `json:"daily"`
	Monthly float64 `json:"monthly"`
	Savings float64 `json:"savings"`
}

// Energy holds the derived energy fields. Clients never set these.
type Energy struct {
	Current float64 `json:"current"` // watts
	Costs   Costs   `json:"costs"`
}

// Environment is the simulated climate of the home.
type Environment struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Energy      Energy  `json:"energy"`
	Weather     string  `json:"weather"`
}

// System holds the home-wide flags.
type System struct {
	HomeAway HomeAway `json:"homeAway"`
	Armed    bool     `json:"armed"`
}

// State is the complete view of the home shared by every client.
type State struct {
	Devices     map[string]Device `json:"devices"`
	Environment Environment       `json:"environment"`
	System      System            `json:"system"`
}

// Clone returns a deep copy of the state. Devices are values, so copying
// the map is enough.
func (s State) Clone() State {
	out := s
	out.Devices = make(map[string]Device, len(s.Devices))
	for id, d := range s.Devices {
		out.Devices[id] = d
	}
	return out
}

// DeviceIDs returns the device ids in lexical order.
func (s State) DeviceIDs() []string {
	ids := make([]string, 0, len(s.Devices))
	for id := range s.Devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PrimaryThermostat returns the thermostat that drives the simulated
// climate: the device with id "thermostat" if present, otherwise the
// thermostat with the smallest id.
func (s State) PrimaryThermostat() (Device, bool) {
	if d, ok := s.Devices["thermostat"]; ok && d.IsThermostat() {
		return d, true
	}
	for _, id := range s.DeviceIDs() {
		if d := s.Devices[id]; d.IsThermostat() {
			return d, true
		}
	}
	return Device{}, false
}

// ClampHumidity bounds h to [MinHumidity, MaxHumidity].
func ClampHumidity(h float64) float64 {
	if h < MinHumidity {
		return MinHumidity
	}
	if h > MaxHumidity {
		return MaxHumidity
	}
	return h
}

// DefaultState returns the home the daemon starts with when the
// configuration does not describe one.
func DefaultState() State {
	return State{
		Devices: map[string]Device{
			"livingRoomLights": {Kind: KindLight, Name: "Living Room Lights", Brightness: 100, Count: 4},
			"kitchenLights":    {Kind: KindLight, Name: "Kitchen Lights", Brightness: 100, Count: 2},
			"thermostat": {
				Kind:    KindThermostat,
				Name:    "Main Thermostat",
				On:      true,
				Target:  72,
				Current: 72,
				EcoMode: true,
			},
		},
		Environment: Environment{
			Temperature: 72,
			Humidity:    45,
			Weather:     "sunny",
		},
		System: System{
			HomeAway: ModeHome,
		},
	}
}
