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

func newTestStore(opts ...Option) *Store {
	return New(models.DefaultState(), energy.New(energy.DefaultTariff()), opts...)
}

func TestApplyPathLightOn(t *testing.T) {
	st := newTestStore()

	state, err := st.ApplyPath("devices.kitchenLights", json.RawMessage(`{"on":true}`), "test")
	require.NoError(t, err)

	kitchen := state.Devices["kitchenLights"]
	assert.True(t, kitchen.On)
	// Untouched keys are retained by the shallow merge.
	assert.Equal(t, 100, kitchen.Brightness)
	assert.Equal(t, 2, kitchen.Count)
	assert.Equal(t, "Kitchen Lights", kitchen.Name)

	assert.InDelta(t, 120.0, state.Environment.Energy.Current, 1e-9)
	assert.InDelta(t, 0.0144, state.Environment.Energy.Costs.Hourly, 1e-12)
	assert.InDelta(t, 72.2, state.Environment.Temperature, 1e-9)
	assert.InDelta(t, 44.5, state.Environment.Humidity, 1e-9)

	assert.Equal(t, state, st.Get())
}

func TestApplyPathInvalidLeavesStateUntouched(t *testing.T) {
	st := newTestStore()
	ch := st.Subscribe()
	before := st.Get()

	_, err := st.ApplyPath("devices.nonexistent.field", json.RawMessage(`{"x":1}`), "test")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath))

	_, err = st.ApplyPath("devices.kitchenLights", json.RawMessage(`{"on":true,"brightness":500}`), "test")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	assert.Equal(t, before, st.Get())
	assert.Len(t, ch, 0, "failed updates must not broadcast")
}

func TestApplyIsDeterministic(t *testing.T) {
	patch := json.RawMessage(`{"on":true,"brightness":35}`)

	a := newTestStore()
	b := newTestStore()

	sa, err := a.ApplyPath("devices.livingRoomLights", patch, "test")
	require.NoError(t, err)
	sb, err := b.ApplyPath("devices.livingRoomLights", patch, "test")
	require.NoError(t, err)

	assert.Equal(t, sa, sb)
}

func TestHumidityStaysInRange(t *testing.T) {
	st := newTestStore()

	for i := 0; i < 200; i++ {
		state, err := st.ApplyPath("devices.kitchenLights", json.RawMessage(`{"on":true}`), "test")
		require.NoError(t, err)
		require.GreaterOrEqual(t, state.Environment.Humidity, models.MinHumidity)
	}
	assert.Equal(t, models.MinHumidity, st.Get().Environment.Humidity)

	// Without the thermostat, switching lights off only adds humidity.
	_, err := st.ApplyPath("devices.thermostat", json.RawMessage(`{"on":false}`), "test")
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		state, err := st.ApplyPath("devices.kitchenLights", json.RawMessage(`{"on":false}`), "test")
		require.NoError(t, err)
		require.LessOrEqual(t, state.Environment.Humidity, models.MaxHumidity)
	}
	assert.Equal(t, models.MaxHumidity, st.Get().Environment.Humidity)
}

func TestEnvironmentPatchClampsHumidity(t *testing.T) {
	st := newTestStore()

	state, err := st.ApplyPath("environment", json.RawMessage(`{"humidity":95}`), "test")
	require.NoError(t, err)
	assert.Equal(t, models.MaxHumidity, state.Environment.Humidity)

	state, err = st.ApplyPath("environment", json.RawMessage(`{"humidity":3}`), "test")
	require.NoError(t, err)
	assert.Equal(t, models.MinHumidity, state.Environment.Humidity)
}

func TestBrightnessRaisesHourlyCost(t *testing.T) {
	st := newTestStore()
	_, err := st.ApplyPath("devices.livingRoomLights", json.RawMessage(`{"on":true,"brightness":10}`), "test")
	require.NoError(t, err)
	low := st.Get().Environment.Energy

	_, err = st.ApplyPath("devices.livingRoomLights", json.RawMessage(`{"brightness":80}`), "test")
	require.NoError(t, err)
	high := st.Get().Environment.Energy

	assert.Greater(t, high.Current, low.Current)
	assert.Greater(t, high.Costs.Hourly, low.Costs.Hourly)
}

func TestTypedPatch(t *testing.T) {
	st := newTestStore()
	target := 68.0

	state, err := st.Apply(ThermostatPatch{ID: "thermostat", Target: &target}, "test")
	require.NoError(t, err)
	// 4°F from the 72°F reading at 100W per degree.
	assert.InDelta(t, 400.0, state.Environment.Energy.Current, 1e-9)

	on := true
	_, err = st.Apply(LightPatch{ID: "thermostat", On: &on}, "test")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = st.Apply(LightPatch{ID: "porch", On: &on}, "test")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath))
}

func TestSubscribersReceiveOrderedSnapshots(t *testing.T) {
	st := newTestStore()
	a := st.Subscribe()
	b := st.Subscribe()

	for _, on := range []string{"true", "false", "true"} {
		_, err := st.ApplyPath("devices.kitchenLights", json.RawMessage(`{"on":`+on+`}`), "test")
		require.NoError(t, err)
	}

	for _, ch := range []chan Update{a, b} {
		require.Len(t, ch, 3)
		var last uint64
		for i := 0; i < 3; i++ {
			u := <-ch
			assert.Greater(t, u.Seq, last)
			last = u.Seq
			assert.Equal(t, UpdateDevice, u.Type)
			assert.Equal(t, "devices.kitchenLights", u.Path)
		}
	}
}

func TestRefreshTargetsOneSubscriber(t *testing.T) {
	st := newTestStore()
	a := st.Subscribe()
	b := st.Subscribe()

	state := st.Refresh(a, "session-a")
	require.Len(t, a, 1)
	assert.Len(t, b, 0)

	u := <-a
	assert.Equal(t, UpdateSnapshot, u.Type)
	assert.Equal(t, state, u.State)

	// Unknown or dropped channels get nothing and do not panic.
	st.Unsubscribe(b)
	st.Refresh(b, "gone")
}

func TestSnapshotsAreIndependent(t *testing.T) {
	st := newTestStore()
	ch := st.Subscribe()

	_, err := st.ApplyPath("devices.kitchenLights", json.RawMessage(`{"on":true}`), "test")
	require.NoError(t, err)
	u := <-ch

	d := u.State.Devices["kitchenLights"]
	d.Brightness = 1
	u.State.Devices["kitchenLights"] = d

	assert.Equal(t, 100, st.Get().Devices["kitchenLights"].Brightness)
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	st := newTestStore(WithBufferSize(1))
	slow := st.Subscribe()
	require.Equal(t, 1, st.SubscriberCount())

	for i := 0; i < 2; i++ {
		_, err := st.ApplyPath("system", json.RawMessage(`{"armed":true}`), "test")
		require.NoError(t, err)
	}

	assert.Equal(t, 0, st.SubscriberCount())
	<-slow
	_, open := <-slow
	assert.False(t, open, "dropped subscriber channel is closed")

	// Unsubscribing after the drop is a no-op.
	st.Unsubscribe(slow)
}

func TestSetTariffBroadcasts(t *testing.T) {
	st := newTestStore()
	_, err := st.ApplyPath("devices.kitchenLights", json.RawMessage(`{"on":true}`), "test")
	require.NoError(t, err)
	ch := st.Subscribe()

	tariff := energy.DefaultTariff()
	tariff.RatePerKWh = 0.24
	state := st.SetTariff(tariff, "config")

	assert.InDelta(t, 0.0288, state.Environment.Energy.Costs.Hourly, 1e-12)
	assert.Equal(t, 0.24, st.Tariff().RatePerKWh)
	u := <-ch
	assert.Equal(t, UpdateTariff, u.Type)
	assert.Equal(t, "config", u.Source)
}
