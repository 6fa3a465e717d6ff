package regmap

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// DeviceClient reads and writes register mapped props on one Modbus TCP
// endpoint shared by every unit id behind it.
type DeviceClient interface {
	Open() error
	Close() error
	ReadProps(m DeviceMap) (map[string]any, error)
	WriteProps(m DeviceMap, props map[string]any) error
}

type ModbusClient struct {
	client     *modbus.ModbusClient
	instrument []ModbusInstrument
	logger     *zap.Logger
}

type ModbusInstrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

func CreateModbusDeviceClient(ip string, port uint, timeout time.Duration, logger *zap.Logger,
	instrumentation *ModbusInstrument) (DeviceClient, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", ip, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	var instrument []ModbusInstrument
	if instrumentation != nil {
		instrument = append(instrument, *instrumentation)
	}
	return &ModbusClient{
		client:     client,
		instrument: instrument,
		logger:     logger,
	}, nil
}

func (c *ModbusClient) Open() error {
	return c.client.Open()
}

func (c *ModbusClient) Close() error {
	return c.client.Close()
}

func (c *ModbusClient) ReadProps(m DeviceMap) (map[string]any, error) {
	if err := c.client.SetUnitId(m.UnitId); err != nil {
		return nil, err
	}
	props := make(map[string]any, len(m.Registers))
	for _, r := range m.Registers {
		switch r.Type {
		case REG_COIL:
			v, err := c.readCoil(r.Address)
			if err != nil {
				return nil, fmt.Errorf("unit %d read %s: %w", m.UnitId, r.Prop, err)
			}
			props[r.Prop] = v
		case REG_DISCRETE:
			v, err := c.readDiscreteInput(r.Address)
			if err != nil {
				return nil, fmt.Errorf("unit %d read %s: %w", m.UnitId, r.Prop, err)
			}
			props[r.Prop] = v
		default:
			regType := modbus.HOLDING_REGISTER
			if r.Type == REG_INPUT {
				regType = modbus.INPUT_REGISTER
			}
			raw, err := c.readRegister(r.Address, regType)
			if err != nil {
				return nil, fmt.Errorf("unit %d read %s: %w", m.UnitId, r.Prop, err)
			}
			props[r.Prop] = r.Decode(raw)
		}
	}
	c.logger.Debug("regmap read", zap.Uint8("unit", m.UnitId), zap.Any("props", props))
	return props, nil
}

func (c *ModbusClient) WriteProps(m DeviceMap, props map[string]any) error {
	writes, err := planWrites(m, props)
	if err != nil {
		return err
	}
	if err := c.client.SetUnitId(m.UnitId); err != nil {
		return err
	}
	for _, w := range writes {
		if w.reg.isBit() {
			err = c.writeCoil(w.reg.Address, w.bit)
		} else {
			err = c.writeRegister(w.reg.Address, w.word)
		}
		if err != nil {
			return fmt.Errorf("unit %d write %s: %w", m.UnitId, w.reg.Prop, err)
		}
	}
	c.logger.Debug("regmap write", zap.Uint8("unit", m.UnitId), zap.Any("props", props))
	return nil
}

func (c *ModbusClient) readRegister(addr uint16, regType modbus.RegType) (uint16, error) {
	defer RecordTimer("ReadRegister", c.instrument)()
	return c.client.ReadRegister(addr, regType)
}

func (c *ModbusClient) readCoil(addr uint16) (bool, error) {
	defer RecordTimer("ReadCoil", c.instrument)()
	return c.client.ReadCoil(addr)
}

func (c *ModbusClient) readDiscreteInput(addr uint16) (bool, error) {
	defer RecordTimer("ReadDiscreteInput", c.instrument)()
	return c.client.ReadDiscreteInput(addr)
}

func (c *ModbusClient) writeRegister(addr uint16, value uint16) error {
	defer RecordTimer("WriteRegister", c.instrument)()
	return c.client.WriteRegister(addr, value)
}

func (c *ModbusClient) writeCoil(addr uint16, value bool) error {
	defer RecordTimer("WriteCoil", c.instrument)()
	return c.client.WriteCoil(addr, value)
}

func RecordTimer(name string, instrument []ModbusInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}
