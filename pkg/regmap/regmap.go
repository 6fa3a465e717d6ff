// Package regmap reads and writes named device properties through a Modbus
// register map.
package regmap

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"

	"github.com/spf13/cast"
)

type RegType string

const (
	REG_HOLDING  RegType = "holding"
	REG_INPUT    RegType = "input"
	REG_COIL     RegType = "coil"
	REG_DISCRETE RegType = "discrete"
)

var (
	ErrNotWritable  = errors.New("property has no writable register")
	ErrInvalidValue = errors.New("value does not fit the register")
)

type Register struct {
	Prop    string
	Address uint16
	Type    RegType
	// Scale multiplies the raw register value, 0 means 1.
	Scale  float64
	Signed bool
	// Enum maps raw register values to the string the property carries.
	Enum     map[uint16]string
	Writable bool
}

// DeviceMap is the register map of one device behind a Modbus unit id.
type DeviceMap struct {
	UnitId    uint8
	Registers []Register
}

func (r Register) Validate() error {
	switch r.Type {
	case REG_HOLDING, REG_INPUT, REG_COIL, REG_DISCRETE:
	default:
		return fmt.Errorf("register %s: unknown type %q", r.Prop, r.Type)
	}
	if r.Writable && (r.Type == REG_INPUT || r.Type == REG_DISCRETE) {
		return fmt.Errorf("register %s: %s registers are read only", r.Prop, r.Type)
	}
	return nil
}

func (r Register) scale() float64 {
	if r.Scale == 0 {
		return 1
	}
	return r.Scale
}

func (r Register) isBit() bool {
	return r.Type == REG_COIL || r.Type == REG_DISCRETE
}

// Decode turns a raw register word into the property value: the enum label,
// an int when unscaled, a float64 otherwise.
func (r Register) Decode(raw uint16) any {
	if len(r.Enum) > 0 {
		if label, ok := r.Enum[raw]; ok {
			return label
		}
		return int(raw)
	}
	var v float64
	if r.Signed {
		v = float64(int16(raw))
	} else {
		v = float64(raw)
	}
	if r.scale() == 1 {
		return int(v)
	}
	return v * r.scale()
}

// Encode is the inverse of Decode.
func (r Register) Encode(value any) (uint16, error) {
	if len(r.Enum) > 0 {
		label := cast.ToString(value)
		for raw, l := range r.Enum {
			if l == label {
				return raw, nil
			}
		}
		if raw, err := strconv.ParseUint(label, 10, 16); err == nil {
			return uint16(raw), nil
		}
		return 0, fmt.Errorf("%w: %s=%v", ErrInvalidValue, r.Prop, value)
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%v", ErrInvalidValue, r.Prop, value)
	}
	scaled := math.RoundToEven(f / r.scale())
	if r.Signed {
		if scaled < math.MinInt16 || scaled > math.MaxInt16 {
			return 0, fmt.Errorf("%w: %s=%v", ErrInvalidValue, r.Prop, value)
		}
		return uint16(int16(scaled)), nil
	}
	if scaled < 0 || scaled > math.MaxUint16 {
		return 0, fmt.Errorf("%w: %s=%v", ErrInvalidValue, r.Prop, value)
	}
	return uint16(scaled), nil
}

// EncodeBit converts a coil value.
func (r Register) EncodeBit(value any) (bool, error) {
	b, err := cast.ToBoolE(value)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%v", ErrInvalidValue, r.Prop, value)
	}
	return b, nil
}

type write struct {
	reg  Register
	word uint16
	bit  bool
}

// planWrites resolves every prop to a writable register before anything is
// written, so a bad prop fails the whole send. Writes go out in prop name
// order.
func planWrites(m DeviceMap, props map[string]any) ([]write, error) {
	byProp := map[string]Register{}
	for _, r := range m.Registers {
		if r.Writable {
			byProp[r.Prop] = r
		}
	}
	writes := make([]write, 0, len(props))
	for _, prop := range slices.Sorted(maps.Keys(props)) {
		value := props[prop]
		reg, ok := byProp[prop]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotWritable, prop)
		}
		w := write{reg: reg}
		var err error
		if reg.isBit() {
			w.bit, err = reg.EncodeBit(value)
		} else {
			w.word, err = reg.Encode(value)
		}
		if err != nil {
			return nil, err
		}
		writes = append(writes, w)
	}
	return writes, nil
}
