package regmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMap() DeviceMap {
	return DeviceMap{
		UnitId: 3,
		Registers: []Register{
			{Prop: "current_position", Address: 0, Type: REG_INPUT},
			{Prop: "position", Address: 1, Type: REG_HOLDING, Writable: true},
			{Prop: "current_temperature", Address: 2, Type: REG_INPUT, Scale: 0.1, Signed: true},
			{Prop: "target_temperature", Address: 3, Type: REG_HOLDING, Scale: 0.5, Writable: true},
			{Prop: "motor", Address: 4, Type: REG_HOLDING, Enum: map[uint16]string{0: "stop", 1: "open", 2: "close"}, Writable: true},
			{Prop: "is_on", Address: 0, Type: REG_COIL, Writable: true},
		},
	}
}

func TestDecode(t *testing.T) {

	assert := assert.New(t)

	regs := testMap().Registers
	assert.Equal(42, regs[0].Decode(42), "unscaled registers are ints")
	assert.InDelta(-1.5, regs[2].Decode(uint16(0xFFF1)), 1e-9, "signed and scaled")
	assert.Equal("open", regs[4].Decode(1))
	assert.Equal(9, regs[4].Decode(9), "unknown enum value stays numeric")
}

func TestEncode(t *testing.T) {

	assert := assert.New(t)

	regs := testMap().Registers

	w, err := regs[3].Encode(22.5)
	assert.NoError(err)
	assert.Equal(uint16(45), w)

	w, err = regs[4].Encode("stop")
	assert.NoError(err)
	assert.Equal(uint16(0), w)

	_, err = regs[4].Encode("sideways")
	assert.True(errors.Is(err, ErrInvalidValue))

	_, err = regs[1].Encode(-1)
	assert.True(errors.Is(err, ErrInvalidValue), "unsigned range")

	w, err = regs[2].Encode(-1.5)
	assert.NoError(err)
	assert.Equal(uint16(0xFFF1), w)
}

func TestPlanWritesFailsWhole(t *testing.T) {

	assert := assert.New(t)

	_, err := planWrites(testMap(), map[string]any{"position": 50, "current_position": 10})
	assert.True(errors.Is(err, ErrNotWritable), "read only prop fails the whole send")

	writes, err := planWrites(testMap(), map[string]any{"position": 50, "is_on": true})
	assert.NoError(err)
	assert.Len(writes, 2)
}

func TestPlanWritesOrder(t *testing.T) {

	assert := assert.New(t)

	for range 20 {
		writes, err := planWrites(testMap(), map[string]any{"target_temperature": 22, "position": 50, "motor": "stop", "is_on": true})
		require.NoError(t, err)
		props := make([]string, 0, len(writes))
		for _, w := range writes {
			props = append(props, w.reg.Prop)
		}
		assert.Equal([]string{"is_on", "motor", "position", "target_temperature"}, props)
	}
}

func TestRegisterValidate(t *testing.T) {

	assert := assert.New(t)

	assert.NoError(Register{Prop: "a", Type: REG_HOLDING, Writable: true}.Validate())
	assert.Error(Register{Prop: "a", Type: "eeprom"}.Validate())
	assert.Error(Register{Prop: "a", Type: REG_INPUT, Writable: true}.Validate())
}

func TestTestDeviceClient(t *testing.T) {

	assert := assert.New(t)

	c := CreateTestDeviceClient(map[uint8]map[string]any{3: {"current_position": 10, "motor": "stop"}})
	props, err := c.ReadProps(testMap())
	require.NoError(t, err)
	assert.Equal(map[string]any{"current_position": 10, "motor": "stop"}, props)

	assert.NoError(c.WriteProps(testMap(), map[string]any{"target_temperature": 21.0}))
	assert.Equal(21.0, c.Values(3)["target_temperature"])

	assert.Error(c.WriteProps(testMap(), map[string]any{"current_position": 1}))
	assert.Len(c.Writes, 1)
}
