package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"

	"github.com/berfenger/yeelightpro2mqtt/internal/config"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"
	// MQTT_COMMAND_GENERIC is the command segment of topics whose payload
	// names the command (on, off, open, close, stop).
	MQTT_COMMAND_GENERIC = "command"
)

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("yeelightpro_%d", rand.IntN(1000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.MQTT.BaseTopic)
	opts.WillQos = 0

	return opts
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client:              mqtt.NewClient(opts),
		cfg:                 cfg.MQTT,
		entityCommandRegexp: entityCommandExtractor(cfg.MQTT.BaseTopic),
		devicePropsRegexp:   devicePropsExtractor(cfg.MQTT.BaseTopic),
	}
}

type MQTTClient struct {
	client              mqtt.Client
	cfg                 config.MQTTConfig
	entityCommandRegexp *regexp.Regexp
	devicePropsRegexp   *regexp.Regexp
}

// ParsedMQTTCommand is a hit on an entity command topic.
type ParsedMQTTCommand struct {
	Component string
	DeviceId  string
	Attr      string
	Command   string
	Payload   string
}

// ParsedDeviceProps is a raw property report relayed by a gateway.
type ParsedDeviceProps struct {
	DeviceId string
	Props    domain.Props
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) DiscoveryPrefix() string {
	return c.cfg.HADiscoveryTopic
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

// EntityStateTopic carries the JSON encoded snapshot values of one entity.
func (c *MQTTClient) EntityStateTopic(component domain.EntityKind, deviceId, attr string) string {
	return fmt.Sprintf("%s/%s/%s/%s/state", c.baseTopic(), component, deviceId, attr)
}

func (c *MQTTClient) EntityAttributesTopic(component domain.EntityKind, deviceId, attr string) string {
	return fmt.Sprintf("%s/%s/%s/%s/attributes", c.baseTopic(), component, deviceId, attr)
}

func (c *MQTTClient) EntityCommandTopic(component domain.EntityKind, deviceId, attr, command string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s/set", c.baseTopic(), component, deviceId, attr, command)
}

func (c *MQTTClient) DevicePropsTopic(deviceId string) string {
	return fmt.Sprintf("%s/device/%s/props", c.baseTopic(), deviceId)
}

func (c *MQTTClient) DeviceSetTopic(deviceId string) string {
	return fmt.Sprintf("%s/device/%s/set", c.baseTopic(), deviceId)
}

func (c *MQTTClient) ParseMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	return parseEntityCommand(c.entityCommandRegexp, msg.Topic(), msg.Payload())
}

func (c *MQTTClient) ParseDeviceProps(msg mqtt.Message) (*ParsedDeviceProps, error) {
	return parseDeviceProps(c.devicePropsRegexp, msg.Topic(), msg.Payload())
}

func parseEntityCommand(r *regexp.Regexp, topic string, payload []byte) (*ParsedMQTTCommand, error) {
	matches := r.FindAllStringSubmatch(topic, 1)
	if len(matches) == 0 {
		return nil, errors.New("invalid command")
	}
	if len(matches[0]) != 5 {
		return nil, errors.New("invalid entity command")
	}
	return &ParsedMQTTCommand{
		Component: matches[0][1],
		DeviceId:  matches[0][2],
		Attr:      matches[0][3],
		Command:   matches[0][4],
		Payload:   string(payload),
	}, nil
}

func parseDeviceProps(r *regexp.Regexp, topic string, payload []byte) (*ParsedDeviceProps, error) {
	matches := r.FindAllStringSubmatch(topic, 1)
	if len(matches) == 0 {
		return nil, errors.New("invalid device props topic")
	}
	var props domain.Props
	if err := json.Unmarshal(payload, &props); err != nil {
		return nil, fmt.Errorf("device %s: invalid props payload: %w", matches[0][1], err)
	}
	if len(props) == 0 {
		return nil, fmt.Errorf("device %s: empty props payload", matches[0][1])
	}
	return &ParsedDeviceProps{
		DeviceId: matches[0][1],
		Props:    props,
	}, nil
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT publish timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	token := c.client.Subscribe(topic, qos, handler)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT subscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

// SubscribeToCommandTopics subscribes to entity commands and relayed device
// reports with a single filter set.
func (c *MQTTClient) SubscribeToCommandTopics(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	filters := map[string]byte{
		c.commandTopic():     1,
		c.devicePropsTopic(): 1,
	}
	token := c.client.SubscribeMultiple(filters, handler)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT subscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Unsubscribe(topic string, continuation func(error), timeout time.Duration) {
	token := c.client.Unsubscribe(topic)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT unsubscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT connect timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func (c *MQTTClient) commandTopic() string {
	return fmt.Sprintf("%s/+/+/+/+/set", c.baseTopic())
}

func (c *MQTTClient) devicePropsTopic() string {
	return fmt.Sprintf("%s/device/+/props", c.baseTopic())
}

func entityCommandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/(climate|cover|fan|select)/([a-zA-Z0-9_]+)/([a-zA-Z0-9_]+)/([a-z_]+)/set$", baseTopic))
}

func devicePropsExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/device/([a-zA-Z0-9_]+)/props$", baseTopic))
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}
