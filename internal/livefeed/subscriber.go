package livefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/eclipse/paho.golang/paho/session/state"
	log "github.com/sirupsen/logrus"

	"github.com/openfleet/tracking-backend-go/internal/models"
)

const (
	keepAlive = 60
	qos       = 1
)

// PointSink archives decoded telemetry. Satisfied by the history
// repository.
type PointSink interface {
	InsertPoint(ctx context.Context, p models.HistoryPoint) error
}

// Telemetry is the wire payload published on fleet/telemetry/<id>.
type Telemetry struct {
	TruckID   string    `json:"truck_id"`
	Timestamp time.Time `json:"timestamp"`
	Location  struct {
		Lat     float64 `json:"lat"`
		Lng     float64 `json:"lng"`
		Speed   float64 `json:"speed"`
		Heading float64 `json:"heading"`
	} `json:"location"`
	Tires  []models.TireReading `json:"tires"`
	Status string               `json:"status"`
}

// Subscriber consumes the telemetry topic, updating the registry and
// archiving every point.
type Subscriber struct {
	broker   string
	topic    string
	clientID string
	registry *Registry
	sink     PointSink
	cm       *autopaho.ConnectionManager
	logger   *log.Entry
}

// NewSubscriber builds a subscriber. The sink may be nil to skip
// archiving.
func NewSubscriber(broker, topic, clientID string, registry *Registry, sink PointSink) *Subscriber {
	return &Subscriber{
		broker:   broker,
		topic:    topic,
		clientID: clientID,
		registry: registry,
		sink:     sink,
		logger:   log.WithField("component", "livefeed"),
	}
}

// Start connects to the broker and subscribes. The connection manager
// reconnects on its own until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	serverURL, err := url.Parse(s.broker)
	if err != nil {
		return fmt.Errorf("invalid broker url: %w", err)
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{serverURL},
		KeepAlive:                     keepAlive,
		CleanStartOnInitialConnection: false,
		SessionExpiryInterval:         60,
		ReconnectBackoff:              autopaho.NewConstantBackoff(5 * time.Second),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			s.logger.Info("mqtt connection up")
			if _, err := cm.Subscribe(context.Background(), &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{
					{Topic: s.topic, QoS: qos},
				},
			}); err != nil {
				s.logger.WithError(err).Error("mqtt subscribe failed")
				return
			}
			s.logger.WithField("topic", s.topic).Info("mqtt subscription made")
		},
		OnConnectError: func(err error) {
			s.logger.WithError(err).Warn("mqtt connection attempt failed")
		},
		ClientConfig: paho.ClientConfig{
			ClientID: s.clientID,
			Session:  state.NewInMemory(),
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					s.handle(pr.Packet)
					return true, nil
				},
			},
			OnClientError: func(err error) {
				s.logger.WithError(err).Warn("mqtt client error")
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				s.logger.WithField("reason_code", d.ReasonCode).Warn("mqtt server disconnect")
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start mqtt connection: %w", err)
	}
	s.cm = cm
	return nil
}

// Stop disconnects cleanly.
func (s *Subscriber) Stop(ctx context.Context) error {
	if s.cm == nil {
		return nil
	}
	return s.cm.Disconnect(ctx)
}

func (s *Subscriber) handle(p *paho.Publish) {
	var msg Telemetry
	if err := json.Unmarshal(p.Payload, &msg); err != nil {
		s.logger.WithError(err).WithField("topic", p.Topic).Warn("dropping malformed telemetry")
		return
	}
	if msg.TruckID == "" {
		s.logger.WithField("topic", p.Topic).Warn("dropping telemetry without truck id")
		return
	}
	s.Apply(msg)
}

// Apply folds one telemetry message into the registry and the archive.
func (s *Subscriber) Apply(msg Telemetry) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	status := models.VehicleStatus(msg.Status)
	if status == "" {
		status = models.StatusActive
	}

	prev, known := s.registry.Get(msg.TruckID)
	v := prev
	if !known {
		v = models.Vehicle{ID: msg.TruckID, Name: msg.TruckID}
	}
	v.Status = status
	v.LivePosition = models.LatLng{Lat: msg.Location.Lat, Lng: msg.Location.Lng}
	v.Speed = msg.Location.Speed
	v.Heading = msg.Location.Heading
	v.Tires = msg.Tires
	v.LastUpdate = msg.Timestamp
	s.registry.Upsert(v)

	if s.sink == nil {
		return
	}
	point := models.HistoryPoint{
		VehicleID: msg.TruckID,
		Timestamp: msg.Timestamp,
		Location:  models.LatLng{Lat: msg.Location.Lat, Lng: msg.Location.Lng},
		Speed:     msg.Location.Speed,
		Heading:   msg.Location.Heading,
		Tires:     msg.Tires,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.sink.InsertPoint(ctx, point); err != nil {
		s.logger.WithError(err).WithField("vehicle", msg.TruckID).Error("failed to archive telemetry point")
	}
}
