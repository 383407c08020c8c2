// Package telemetry publishes horizon progress and outcomes to an MQTT broker.
package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/engine"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/logger"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

// Options configures the MQTT publisher
type Options struct {
	Broker       string // e.g. tcp://localhost:1883
	ClientID     string
	Username     string
	Password     string
	TopicPrefix  string // default docsim
	QoS          byte
	PublishSteps bool // per-step messages in addition to the horizon summary
	Timeout      time.Duration
}

func (o Options) withDefaults() Options {
	if o.TopicPrefix == "" {
		o.TopicPrefix = "docsim"
	}
	if o.ClientID == "" {
		o.ClientID = "docsim"
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	return o
}

// StepMessage is the payload of a per-step publication
type StepMessage struct {
	RunID       string           `json:"run_id"`
	Step        int              `json:"step"`
	Timestamp   time.Time        `json:"timestamp"`
	Mode        models.Mode      `json:"mode"`
	ActiveUnits int              `json:"active_units"`
	AvailableKW float64          `json:"available_kw"`
	ConsumedKW  float64          `json:"consumed_kw"`
	CurtailedKW float64          `json:"curtailed_kw"`
	CO2Kg       float64          `json:"co2_kg"`
	Chemistry   models.Chemistry `json:"chemistry"`
	TankHours   float64          `json:"tank_level_hours"`
}

// SummaryMessage is the retained payload published when a horizon ends
type SummaryMessage struct {
	RunID   string                `json:"run_id"`
	Status  models.HorizonStatus  `json:"status"`
	Error   string                `json:"error,omitempty"`
	Summary models.HorizonSummary `json:"summary"`
}

// Publisher is a step and horizon observer that writes JSON messages to MQTT.
// Publish failures are logged and never interrupt the horizon.
type Publisher struct {
	client mqtt.Client
	opts   Options
	logger *slog.Logger
}

// NewPublisher wraps an existing client
func NewPublisher(client mqtt.Client, opts Options, log *slog.Logger) *Publisher {
	if log == nil {
		log = logger.Default
	}
	return &Publisher{client: client, opts: opts.withDefaults(), logger: log}
}

// Dial connects to the broker and returns a publisher
func Dial(opts Options, log *slog.Logger) (*Publisher, error) {
	opts = opts.withDefaults()
	if opts.Broker == "" {
		return nil, &models.InvalidInputError{Field: "mqtt.broker", Value: "", Reason: "is required"}
	}

	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	co.SetUsername(opts.Username)
	co.SetPassword(opts.Password)
	co.SetAutoReconnect(true)
	co.SetKeepAlive(60 * time.Second)
	co.SetConnectTimeout(opts.Timeout)

	p := NewPublisher(nil, opts, log)
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.logger.Warn("MQTT connection lost", "broker", opts.Broker, "error", err)
	})
	p.client = mqtt.NewClient(co)

	token := p.client.Connect()
	if !token.WaitTimeout(opts.Timeout) {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: timed out after %s", opts.Broker, opts.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", opts.Broker, err)
	}
	p.logger.Info("Connected to MQTT broker", "broker", opts.Broker)
	return p, nil
}

// StepTopic is where per-step messages for a run go
func (p *Publisher) StepTopic(runID string) string {
	return p.opts.TopicPrefix + "/runs/" + runID + "/steps"
}

// SummaryTopic is where the final summary for a run goes
func (p *Publisher) SummaryTopic(runID string) string {
	return p.opts.TopicPrefix + "/runs/" + runID + "/summary"
}

// OnStep publishes the committed step when per-step telemetry is enabled
func (p *Publisher) OnStep(ev engine.StepEvent) {
	if !p.opts.PublishSteps {
		return
	}
	msg := StepMessage{
		RunID:       ev.RunID,
		Step:        ev.Result.Step,
		Timestamp:   ev.Time,
		Mode:        ev.Result.Mode,
		ActiveUnits: ev.Result.ActiveUnits,
		AvailableKW: ev.Result.AvailablePowerKW,
		ConsumedKW:  ev.Result.PowerConsumedKW,
		CurtailedKW: ev.Result.CurtailedPowerKW,
		CO2Kg:       ev.Result.CO2CapturedKg,
		Chemistry:   ev.State.Chemistry,
		TankHours:   ev.State.TankLevelHours,
	}
	if err := p.publish(p.StepTopic(ev.RunID), false, msg); err != nil {
		p.logger.Warn("Failed to publish step telemetry", "run_id", ev.RunID, "step", msg.Step, "error", err)
	}
}

// OnHorizonEnd publishes the retained horizon summary
func (p *Publisher) OnHorizonEnd(runID string, summary models.HorizonSummary, err error) {
	if perr := p.PublishSummary(runID, summary, err); perr != nil {
		p.logger.Warn("Failed to publish horizon summary", "run_id", runID, "error", perr)
	}
}

// PublishSummary publishes the summary of a finished run
func (p *Publisher) PublishSummary(runID string, summary models.HorizonSummary, runErr error) error {
	msg := SummaryMessage{RunID: runID, Status: summary.Status, Summary: summary}
	if runErr != nil {
		msg.Error = runErr.Error()
	}
	return p.publish(p.SummaryTopic(runID), true, msg)
}

func (p *Publisher) publish(topic string, retain bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry: %w", err)
	}
	token := p.client.Publish(topic, p.opts.QoS, retain, payload)
	if !token.WaitTimeout(p.opts.Timeout) {
		return fmt.Errorf("publish to %s timed out after %s", topic, p.opts.Timeout)
	}
	return token.Error()
}

// Close disconnects from the broker
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
