package regmap

import "sync"

// TestDeviceClient keeps register mapped props in memory. Writes go through
// the same planning as the Modbus client so unwritable props fail alike.
type TestDeviceClient struct {
	mu       sync.Mutex
	values   map[uint8]map[string]any
	Writes   []map[string]any
	ReadErr  error
	WriteErr error
}

func CreateTestDeviceClient(initial map[uint8]map[string]any) *TestDeviceClient {
	if initial == nil {
		initial = map[uint8]map[string]any{}
	}
	return &TestDeviceClient{values: initial}
}

func (c *TestDeviceClient) Open() error {
	return nil
}

func (c *TestDeviceClient) Close() error {
	return nil
}

func (c *TestDeviceClient) ReadProps(m DeviceMap) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ReadErr != nil {
		return nil, c.ReadErr
	}
	props := map[string]any{}
	for _, r := range m.Registers {
		if v, ok := c.values[m.UnitId][r.Prop]; ok {
			props[r.Prop] = v
		}
	}
	return props, nil
}

func (c *TestDeviceClient) WriteProps(m DeviceMap, props map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteErr != nil {
		return c.WriteErr
	}
	writes, err := planWrites(m, props)
	if err != nil {
		return err
	}
	if c.values[m.UnitId] == nil {
		c.values[m.UnitId] = map[string]any{}
	}
	for _, w := range writes {
		if w.reg.isBit() {
			c.values[m.UnitId][w.reg.Prop] = w.bit
		} else {
			c.values[m.UnitId][w.reg.Prop] = w.reg.Decode(w.word)
		}
	}
	c.Writes = append(c.Writes, props)
	return nil
}

func (c *TestDeviceClient) Values(unitId uint8) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]any{}
	for k, v := range c.values[unitId] {
		out[k] = v
	}
	return out
}
