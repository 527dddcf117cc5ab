package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/mindcare/guardian/core/model"
	"github.com/mindcare/guardian/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker        string          `json:"broker"`
	ClientID      string          `json:"client_id"`
	Username      string          `json:"username"`
	Password      string          `json:"password"`
	PositionTopic string          `json:"position_topic"`
	UseTLS        bool            `json:"use_tls"`
	ClientCert    string          `json:"client_cert"`
	ClientKey     string          `json:"client_key"`
	CABundle      string          `json:"ca_bundle"`
	AuthMethod    string          `json:"auth_method"`
	QoS           map[string]byte `json:"qos"`
	LWTTopic      string          `json:"lwt_topic"`
	LWTPayload    string          `json:"lwt_payload"`
	LWTQoS        byte            `json:"lwt_qos"`
	LWTRetain     bool            `json:"lwt_retain"`
	TLSConfig     *tls.Config     `json:"-"`
}

// DefaultPositionTopic matches one position report per subject.
const DefaultPositionTopic = "subject/+/position"

// PositionHandler consumes accepted location reports.
type PositionHandler interface {
	UpdatePosition(subjectID string, pos model.Position) error
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PositionSource subscribes to per-subject position topics and feeds each
// report into the handler.
type PositionSource struct {
	cli     pahoClient
	topic   string
	qos     map[string]byte
	handler PositionHandler
	logger  logger.Logger
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// positionReport is the wire payload published by subject devices.
type positionReport struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_m"`
	CapturedAt     time.Time `json:"captured_at"`
}

// NewPositionSource connects to the MQTT broker and subscribes to the
// position topic.
func NewPositionSource(cfg Config, handler PositionHandler) (*PositionSource, error) {
	if handler == nil {
		return nil, fmt.Errorf("mqtt: nil position handler")
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_position_source")
	topic := cfg.PositionTopic
	if topic == "" {
		topic = DefaultPositionTopic
	}
	ps := &PositionSource{
		topic:   topic,
		qos:     cfg.QoS,
		handler: handler,
		logger:  log,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		qos := byte(0)
		if q, ok := ps.qos["position"]; ok {
			qos = q
		}
		if token := c.Subscribe(ps.topic, qos, ps.onPosition); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	ps.cli = c
	return ps, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

func (p *PositionSource) onPosition(_ paho.Client, msg paho.Message) {
	subjectID, ok := subjectFromTopic(msg.Topic())
	if !ok {
		p.logger.Warnf("position on unexpected topic %s", msg.Topic())
		return
	}
	var r positionReport
	if err := json.Unmarshal(msg.Payload(), &r); err != nil {
		p.logger.Errorf("failed to decode position for %s: %v", subjectID, err)
		return
	}
	pos := model.Position{
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		AccuracyMeters: r.AccuracyMeters,
		CapturedAt:     r.CapturedAt,
	}
	if pos.CapturedAt.IsZero() {
		pos.CapturedAt = time.Now()
	}
	if err := p.handler.UpdatePosition(subjectID, pos); err != nil {
		p.logger.Debugf("position for %s not applied: %v", subjectID, err)
	}
}

// subjectFromTopic extracts the subject id from subject/<id>/position.
func subjectFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "subject" || parts[2] != "position" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Disconnect gracefully closes the MQTT connection.
func (p *PositionSource) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
