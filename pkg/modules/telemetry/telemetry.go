// Package telemetry publishes the station state to an MQTT broker every loop
// iteration.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/pira/pkg/module"
	"github.com/urmzd/pira/pkg/pirasmart"
)

const Name = "telemetry"

// Defaults.
const (
	DefaultClientID = "pira"
	DefaultTopic    = "pira"

	publishTimeout = 5 * time.Second
)

// Status payloads published retained on <topic>/status.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Publisher sends messages to the broker.
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
	Close()
}

// Report is the payload published on <topic>/state.
type Report struct {
	Time     time.Time         `json:"time"`
	PiraOK   bool              `json:"pira_ok"`
	Voltage  *float64          `json:"voltage,omitempty"`
	RTC      *time.Time        `json:"rtc,omitempty"`
	Timers   map[string]uint32 `json:"timers,omitempty"`
	Charging bool              `json:"charging"`
	Debug    bool              `json:"debug"`
	Modules  []string          `json:"modules,omitempty"`
}

// Telemetry reports the station state over MQTT.
type Telemetry struct {
	st    module.Station
	pub   Publisher
	topic string
}

// New is the module factory. It needs MQTT_BROKER.
func New(st module.Station) (module.Module, error) {
	v := st.Config().Values
	broker := v.String("MQTT_BROKER", "")
	if broker == "" {
		return nil, errors.New("MQTT_BROKER is not set")
	}
	topic := v.String("MQTT_TOPIC", DefaultTopic)

	pub, err := Dial(broker, v.String("MQTT_CLIENT_ID", DefaultClientID), topic+"/status")
	if err != nil {
		return nil, err
	}
	return NewWithPublisher(st, pub, topic), nil
}

// NewWithPublisher creates the module over an existing publisher.
func NewWithPublisher(st module.Station, pub Publisher, topic string) *Telemetry {
	return &Telemetry{st: st, pub: pub, topic: topic}
}

// Process publishes the current report.
func (t *Telemetry) Process(_ context.Context, modules *module.Registry) error {
	report := Build(t.st)
	if modules != nil {
		report.Modules = modules.Names()
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	if err := t.pub.Publish(t.topic+"/state", false, payload); err != nil {
		return fmt.Errorf("publish state: %w", err)
	}
	log.Debug().Str("topic", t.topic+"/state").Int("bytes", len(payload)).Msg("Telemetry published")
	return nil
}

// Shutdown marks the station offline and disconnects.
func (t *Telemetry) Shutdown(_ context.Context, _ *module.Registry) error {
	defer t.pub.Close()
	if err := t.pub.Publish(t.topic+"/status", true, []byte(StatusOffline)); err != nil {
		return fmt.Errorf("publish offline status: %w", err)
	}
	return nil
}

// Build snapshots the station into a report.
func Build(st module.Station) Report {
	r := Report{
		Time:     st.Now().UTC(),
		PiraOK:   st.PiraOK(),
		Charging: st.IsCharging(),
		Debug:    st.IsDebugEnabled(),
	}

	timers := st.Timers()
	if v, ok := timers.Voltage(); ok {
		r.Voltage = &v
	}
	if rtc, ok := timers.RTC(); ok {
		r.RTC = &rtc
	}
	for _, tag := range pirasmart.ReadTags {
		if tag == pirasmart.TagTime || tag == pirasmart.TagBattery {
			continue
		}
		if v := timers.Get(tag); v.Valid {
			if r.Timers == nil {
				r.Timers = make(map[string]uint32)
			}
			r.Timers[tag.String()] = v.Raw
		}
	}
	return r
}

// mqttPublisher is a Publisher backed by a paho client.
type mqttPublisher struct {
	client mqtt.Client
}

// Dial connects to broker. The retained status topic is set to online on
// every connect, and the broker publishes offline if the connection drops.
func Dial(broker, clientID, statusTopic string) (Publisher, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetWill(statusTopic, StatusOffline, 1, true)
	opts.OnConnect = func(c mqtt.Client) {
		if token := c.Publish(statusTopic, 1, true, StatusOnline); token.WaitTimeout(publishTimeout) && token.Error() != nil {
			log.Warn().Err(token.Error()).Msg("Failed to publish online status")
		}
		log.Info().Str("broker", broker).Str("client_id", clientID).Msg("Connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", broker).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(publishTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, token.Error())
	}
	return &mqttPublisher{client: client}, nil
}

func (p *mqttPublisher) Publish(topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

func (p *mqttPublisher) Close() {
	p.client.Disconnect(250)
}
