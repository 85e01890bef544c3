// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge connects the poller to the outside world: an MQTT broker
// for snapshots and commands, and Prometheus gauges.
package bridge

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/Thermoquad/gecostat/pkg/geco"
	"github.com/Thermoquad/gecostat/pkg/poller"
)

// Availability payloads
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Submitter accepts register writes. *poller.Poller implements it.
type Submitter interface {
	Submit(name string, value interface{}) error
}

// SubmitterFunc adapts a function to Submitter
type SubmitterFunc func(name string, value interface{}) error

// Submit calls f
func (f SubmitterFunc) Submit(name string, value interface{}) error {
	return f(name, value)
}

// MQTTConfig describes the broker connection
type MQTTConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	TopicPrefix string
	ClientID    string

	ConnectTimeout time.Duration
}

// MQTTPublisher publishes decoded blocks to retained topics and turns messages on
// <prefix>/config/<Register>/set into register writes.
//
// Topics:
//
//	<prefix>/status                      online / offline (last will)
//	<prefix>/state/status/<Field>        status fields
//	<prefix>/state/config/<Field>        config fields
//	<prefix>/debug/<block>               raw registers as JSON, address -> word
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	log    *zap.Logger
	submit Submitter
}

// NewMQTTPublisher creates a publisher. Connect must be called before publishing.
func NewMQTTPublisher(cfg MQTTConfig, submit Submitter, log *zap.Logger) *MQTTPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "hewalex"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("gecostat-%d", time.Now().UnixNano())
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}

	m := &MQTTPublisher{
		prefix: strings.TrimSuffix(cfg.TopicPrefix, "/"),
		log:    log,
		submit: submit,
	}

	opts := mqtt.NewClientOptions()
	broker := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.User != "" {
		opts.SetUsername(cfg.User)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetWriteTimeout(10 * time.Second)
	opts.SetWill(m.availabilityTopic(), PayloadOffline, 1, true)

	opts.OnConnect = m.onConnect
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		m.log.Warn("MQTT connection lost, will reconnect", zap.Error(err))
	}

	m.client = mqtt.NewClient(opts)
	return m
}

// newPublisherWithClient wraps an existing client
func newPublisherWithClient(client mqtt.Client, prefix string, submit Submitter, log *zap.Logger) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: prefix, submit: submit, log: log}
}

// Connect blocks until the broker accepts the connection. Failure here is
// fatal for the daemon.
func (m *MQTTPublisher) Connect() error {
	token := m.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connection failed: %w", token.Error())
	}
	return nil
}

// Close announces offline and disconnects
func (m *MQTTPublisher) Close() {
	if !m.client.IsConnected() {
		return
	}
	token := m.client.Publish(m.availabilityTopic(), 1, true, PayloadOffline)
	token.WaitTimeout(2 * time.Second)
	m.client.Disconnect(250)
}

func (m *MQTTPublisher) availabilityTopic() string {
	return m.prefix + "/status"
}

// CommandTopic returns the topic that writes the named register
func (m *MQTTPublisher) CommandTopic(register string) string {
	return m.prefix + "/config/" + register + "/set"
}

func (m *MQTTPublisher) onConnect(client mqtt.Client) {
	m.log.Info("connected to MQTT broker")
	client.Publish(m.availabilityTopic(), 1, true, PayloadOnline)

	filter := m.CommandTopic("+")
	token := client.Subscribe(filter, 1, m.handleCommand)
	if token.Wait() && token.Error() != nil {
		m.log.Error("failed to subscribe", zap.String("topic", filter), zap.Error(token.Error()))
		return
	}
	m.log.Info("subscribed to commands", zap.String("topic", filter))
}

// handleCommand forwards <prefix>/config/<Register>/set payloads. Shape
// checks happen when the write is encoded, not here.
func (m *MQTTPublisher) handleCommand(client mqtt.Client, msg mqtt.Message) {
	register, ok := m.registerFromTopic(msg.Topic())
	if !ok {
		m.log.Warn("ignoring message on unexpected topic", zap.String("topic", msg.Topic()))
		return
	}
	value := strings.TrimSpace(string(msg.Payload()))
	m.log.Info("command received", zap.String("register", register), zap.String("value", value))

	if m.submit == nil {
		return
	}
	if err := m.submit.Submit(register, value); err != nil {
		m.log.Warn("command rejected", zap.String("register", register), zap.Error(err))
	}
}

func (m *MQTTPublisher) registerFromTopic(topic string) (string, bool) {
	rest := strings.TrimPrefix(topic, m.prefix+"/config/")
	if rest == topic || !strings.HasSuffix(rest, "/set") {
		return "", false
	}
	register := strings.TrimSuffix(rest, "/set")
	if register == "" || strings.Contains(register, "/") {
		return "", false
	}
	return register, true
}

// PublishStatus implements poller.Sink
func (m *MQTTPublisher) PublishStatus(r geco.StatusRecord) {
	m.publishFields("status", r.Map())
}

// PublishConfig implements poller.Sink
func (m *MQTTPublisher) PublishConfig(r geco.ConfigRecord) {
	m.publishFields("config", r.Map())
}

// PublishRaw implements poller.RawSink
func (m *MQTTPublisher) PublishRaw(block geco.Block, regs []uint16) {
	if !m.client.IsConnected() {
		return
	}
	data := make(map[string]uint16, len(regs))
	for i, v := range regs {
		data[strconv.Itoa(int(block.Base())+i)] = v
	}
	payload, err := json.Marshal(data)
	if err != nil {
		m.log.Error("failed to encode raw registers", zap.Error(err))
		return
	}
	m.client.Publish(m.prefix+"/debug/"+block.String(), 0, false, payload)
}

func (m *MQTTPublisher) publishFields(kind string, fields map[string]interface{}) {
	if !m.client.IsConnected() {
		return
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		topic := fmt.Sprintf("%s/state/%s/%s", m.prefix, kind, name)
		m.client.Publish(topic, 0, true, FormatPayload(fields[name]))
	}
}

// FormatPayload renders a field value as an MQTT payload: one decimal for
// temperatures, ON/OFF for booleans
func FormatPayload(v interface{}) string {
	return geco.FormatValue(v)
}

var (
	_ poller.Sink    = (*MQTTPublisher)(nil)
	_ poller.RawSink = (*MQTTPublisher)(nil)
)
