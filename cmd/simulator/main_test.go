package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTireStatus(t *testing.T) {
	assert.Equal(t, "normal", tireStatus(60, 105))
	assert.Equal(t, "warning", tireStatus(85, 105))
	assert.Equal(t, "warning", tireStatus(60, 95))
	assert.Equal(t, "critical_high", tireStatus(100, 105))
	assert.Equal(t, "critical_high", tireStatus(60, 120))
	assert.Equal(t, "critical_low", tireStatus(60, 89))

	// Low pressure wins over high temperature.
	assert.Equal(t, "critical_low", tireStatus(105, 85))
}

func TestStepMovesTowardTarget(t *testing.T) {
	truck := newTruck("101")

	before := truck.Position
	truck.step(2 * time.Second)

	assert.NotEqual(t, before, truck.Position)
	assert.GreaterOrEqual(t, truck.SpeedKmh, 20.0)
	assert.LessOrEqual(t, truck.SpeedKmh, 90.0)
	assert.GreaterOrEqual(t, truck.Heading, 0.0)
	assert.Less(t, truck.Heading, 360.0)
}

func TestStepKeepsTiresBounded(t *testing.T) {
	truck := newTruck("450")

	for i := 0; i < 500; i++ {
		truck.step(time.Second)
	}
	for _, tire := range truck.Tires {
		assert.GreaterOrEqual(t, tire.Temperature, 40.0)
		assert.LessOrEqual(t, tire.Temperature, 110.0)
		assert.GreaterOrEqual(t, tire.Pressure, 80.0)
		assert.LessOrEqual(t, tire.Pressure, 130.0)
	}
}

func TestTelemetryPayload(t *testing.T) {
	truck := newTruck("820")
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	msg := truck.telemetry(now)

	assert.Equal(t, "820", msg.TruckID)
	assert.Equal(t, now, msg.Timestamp)
	assert.Equal(t, "active", msg.Status)
	assert.Equal(t, truck.Position.Lat, msg.Location.Lat)
	assert.Equal(t, truck.Position.Lng, msg.Location.Lng)
	require.Len(t, msg.Tires, len(tirePositions))
	for i, tire := range msg.Tires {
		assert.Equal(t, i+1, tire.TireNo)
		assert.Equal(t, tirePositions[i], tire.Position)
		assert.NotEmpty(t, tire.Status)
		assert.Equal(t, now, tire.Timestamp)
	}
}
