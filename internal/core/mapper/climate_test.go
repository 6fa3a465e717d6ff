package mapper

import (
	"errors"
	"testing"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestEffectiveHVACMode(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(HVACOff, EffectiveHVACMode(false, HVACCool), "off wins over stored mode")
	assert.Equal(HVACCool, EffectiveHVACMode(true, HVACCool), "stored mode resumes")
	assert.Equal(HVACHeat, BathHeaterHVACMode(true))
	assert.Equal(HVACOff, BathHeaterHVACMode(false))
}

func TestStandardHVACModeProps(t *testing.T) {

	assert := assert.New(t)

	props, err := StandardHVACModeProps(HVACOff)
	assert.NoError(err)
	assert.Equal(domain.Props{"is_on": false}, props)

	props, err = StandardHVACModeProps(HVACCool)
	assert.NoError(err)
	assert.Equal(domain.Props{"is_on": true, "mode": "cool"}, props)

	_, err = StandardHVACModeProps("auto")
	assert.True(errors.Is(err, domain.ErrUnsupportedCommand))
}

func TestBathHeaterHVACModeProps(t *testing.T) {

	assert := assert.New(t)

	props, err := BathHeaterHVACModeProps(HVACHeat)
	assert.NoError(err)
	assert.Equal(domain.Props{"is_on": true}, props)

	props, err = BathHeaterHVACModeProps(HVACOff)
	assert.NoError(err)
	assert.Equal(domain.Props{"is_on": false}, props)

	props, err = BathHeaterHVACModeProps(HVACCool)
	assert.Nil(props, "nothing to send")
	assert.True(errors.Is(err, domain.ErrUnsupportedCommand))
}

func TestFanModeAndTemperatureProps(t *testing.T) {

	assert := assert.New(t)

	props, err := FanModeProps("medium")
	assert.NoError(err)
	assert.Equal(domain.Props{"fan_mode": "medium"}, props)

	_, err = FanModeProps("auto")
	assert.True(errors.Is(err, domain.ErrInvalidCommandValue))

	assert.Equal(domain.Props{"target_temperature": 22.5}, TemperatureProps(22.5))
}
