// Command simulator publishes synthetic fleet telemetry to the MQTT broker
// so the tracking backend can be exercised without real trucks. Each truck
// drives between a set of waypoints, drifting its speed and tire readings
// on every tick.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	log "github.com/sirupsen/logrus"

	"github.com/openfleet/tracking-backend-go/internal/livefeed"
	"github.com/openfleet/tracking-backend-go/internal/models"
	"github.com/openfleet/tracking-backend-go/internal/spatial"
)

// Truck IDs are numeric so the dashboard's cluster ranges have something
// to group: 101 and 150 fall in 100-199, 450 in 400-599, and so on.
var truckIDs = []string{"101", "150", "245", "317", "450", "512", "608", "744", "820", "955"}

var tirePositions = []string{"front-left", "front-right", "rear-left", "rear-right"}

// Depot and waypoint coordinates around the Johor industrial corridor.
var waypoints = []models.LatLng{
	{Lat: 1.4927, Lng: 103.7414},
	{Lat: 1.5533, Lng: 103.6421},
	{Lat: 1.4655, Lng: 103.8908},
	{Lat: 1.6007, Lng: 103.8176},
	{Lat: 1.3521, Lng: 103.8198},
	{Lat: 1.4241, Lng: 103.6293},
}

type tireState struct {
	Temperature float64
	Pressure    float64
	Battery     int
}

type truckState struct {
	ID       string
	Position models.LatLng
	Target   models.LatLng
	SpeedKmh float64
	Heading  float64
	Tires    []tireState
}

func newTruck(id string) *truckState {
	start := jitter(waypoints[rand.Intn(len(waypoints))], 800)
	t := &truckState{
		ID:       id,
		Position: start,
		Target:   waypoints[rand.Intn(len(waypoints))],
		SpeedKmh: 40 + rand.Float64()*40,
	}
	for range tirePositions {
		t.Tires = append(t.Tires, tireState{
			Temperature: 55 + rand.Float64()*15,
			Pressure:    100 + rand.Float64()*15,
			Battery:     70 + rand.Intn(30),
		})
	}
	return t
}

// jitter offsets a location by up to the given number of meters in a random
// direction.
func jitter(base models.LatLng, meters float64) models.LatLng {
	lat, lng := spatial.DestinationPoint(base.Lat, base.Lng, rand.Float64()*360, rand.Float64()*meters)
	return models.LatLng{Lat: lat, Lng: lng}
}

// step advances the truck toward its target waypoint for one tick, picking a
// new waypoint once it gets within 200 meters.
func (t *truckState) step(tick time.Duration) {
	t.SpeedKmh += (rand.Float64() - 0.5) * 6
	if t.SpeedKmh < 20 {
		t.SpeedKmh = 20
	}
	if t.SpeedKmh > 90 {
		t.SpeedKmh = 90
	}

	remaining := spatial.HaversineDistance(t.Position.Lat, t.Position.Lng, t.Target.Lat, t.Target.Lng)
	if remaining < 200 {
		t.Target = waypoints[rand.Intn(len(waypoints))]
		remaining = spatial.HaversineDistance(t.Position.Lat, t.Position.Lng, t.Target.Lat, t.Target.Lng)
	}

	t.Heading = spatial.Bearing(t.Position.Lat, t.Position.Lng, t.Target.Lat, t.Target.Lng)
	travel := t.SpeedKmh * 1000 / 3600 * tick.Seconds()
	if travel > remaining {
		travel = remaining
	}
	lat, lng := spatial.DestinationPoint(t.Position.Lat, t.Position.Lng, t.Heading, travel)
	t.Position = models.LatLng{Lat: lat, Lng: lng}

	for i := range t.Tires {
		tire := &t.Tires[i]
		tire.Temperature += (rand.Float64() - 0.45) * 2
		if tire.Temperature < 40 {
			tire.Temperature = 40
		}
		if tire.Temperature > 110 {
			tire.Temperature = 110
		}
		tire.Pressure += (rand.Float64() - 0.5) * 1.5
		if tire.Pressure < 80 {
			tire.Pressure = 80
		}
		if tire.Pressure > 130 {
			tire.Pressure = 130
		}
		if rand.Intn(20) == 0 && tire.Battery > 5 {
			tire.Battery--
		}
	}
}

// tireStatus maps a reading onto the status vocabulary the backend aggregates
// on. Pressure faults take precedence over temperature.
func tireStatus(temp, pressure float64) string {
	switch {
	case pressure < 90:
		return "critical_low"
	case pressure >= 120:
		return "critical_high"
	case temp >= 100:
		return "critical_high"
	case pressure < 100 || temp >= 85:
		return "warning"
	default:
		return "normal"
	}
}

func (t *truckState) telemetry(now time.Time) livefeed.Telemetry {
	msg := livefeed.Telemetry{
		TruckID:   t.ID,
		Timestamp: now,
		Status:    "active",
	}
	msg.Location.Lat = t.Position.Lat
	msg.Location.Lng = t.Position.Lng
	msg.Location.Speed = t.SpeedKmh
	msg.Location.Heading = t.Heading
	for i, tire := range t.Tires {
		msg.Tires = append(msg.Tires, models.TireReading{
			TireNo:      i + 1,
			Position:    tirePositions[i],
			Temperature: tire.Temperature,
			Pressure:    tire.Pressure,
			Status:      tireStatus(tire.Temperature, tire.Pressure),
			Battery:     tire.Battery,
			Timestamp:   now,
		})
	}
	return msg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger := log.WithField("component", "simulator")

	broker := envOr("MQTT_BROKER", "tcp://localhost:1883")
	topicPrefix := envOr("MQTT_TOPIC_PREFIX", "fleet/telemetry")
	interval := 2 * time.Second
	if raw := os.Getenv("PUBLISH_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			logger.WithError(err).Fatal("Invalid PUBLISH_INTERVAL")
		}
		interval = d
	}
	count := len(truckIDs)
	if raw := os.Getenv("TRUCK_COUNT"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			logger.Fatal("TRUCK_COUNT must be a positive integer")
		}
		if n < count {
			count = n
		}
	}

	serverURL, err := url.Parse(broker)
	if err != nil {
		logger.WithError(err).Fatal("Invalid MQTT_BROKER url")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{serverURL},
		KeepAlive:                     60,
		CleanStartOnInitialConnection: false,
		SessionExpiryInterval:         60,
		ReconnectBackoff:              autopaho.NewConstantBackoff(5 * time.Second),
		OnConnectionUp: func(_ *autopaho.ConnectionManager, _ *paho.Connack) {
			logger.Info("Connected to MQTT broker")
		},
		OnConnectError: func(err error) {
			logger.WithError(err).Warn("MQTT connection error")
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "tracking-simulator",
			OnClientError: func(err error) {
				logger.WithError(err).Warn("MQTT client error")
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MQTT connection")
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to connect to MQTT broker")
	}

	trucks := make([]*truckState, 0, count)
	for _, id := range truckIDs[:count] {
		trucks = append(trucks, newTruck(id))
	}
	logger.WithFields(log.Fields{
		"trucks":   len(trucks),
		"broker":   broker,
		"interval": interval.String(),
	}).Info("Simulator started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down simulator")
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = cm.Disconnect(disconnectCtx)
			return
		case <-ticker.C:
			now := time.Now()
			for _, truck := range trucks {
				truck.step(interval)
				payload, err := json.Marshal(truck.telemetry(now))
				if err != nil {
					logger.WithError(err).Error("Failed to encode telemetry")
					continue
				}
				topic := fmt.Sprintf("%s/%s", topicPrefix, truck.ID)
				if _, err := cm.Publish(ctx, &paho.Publish{
					QoS:     1,
					Topic:   topic,
					Payload: payload,
				}); err != nil {
					logger.WithError(err).WithField("truck", truck.ID).Warn("Publish failed")
				}
			}
		}
	}
}
