package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/port"
	"github.com/berfenger/yeelightpro2mqtt/pkg/regmap"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInstrumentSender(t *testing.T) {

	assert := assert.New(t)

	m := New()
	ok := m.InstrumentSender("kitchen", port.SenderFunc(func(context.Context, domain.Props) (domain.SendOutcome, error) {
		return domain.SendSucceeded, nil
	}))
	failing := m.InstrumentSender("kitchen", port.SenderFunc(func(context.Context, domain.Props) (domain.SendOutcome, error) {
		return domain.SendUnknown, errors.New("timeout")
	}))

	outcome, err := ok.SendProps(context.Background(), domain.Props{"fan_speed": 1})
	assert.NoError(err)
	assert.Equal(domain.SendSucceeded, outcome)

	outcome, err = failing.SendProps(context.Background(), domain.Props{"fan_speed": 1})
	assert.Error(err)
	assert.Equal(domain.SendUnknown, outcome, "outcome is passed through")

	assert.Equal(2, testutil.CollectAndCount(m.SendDuration), "one series per outcome")
}

func TestCounters(t *testing.T) {

	assert := assert.New(t)

	m := New()
	m.Commands.WithLabelValues("kitchen", "turn_on", CommandResult(nil)).Inc()
	m.Commands.WithLabelValues("kitchen", "turn_on", CommandResult(errors.New("x"))).Inc()
	m.Commands.WithLabelValues("kitchen", "turn_on", CommandResult(nil)).Inc()

	assert.Equal(2.0, testutil.ToFloat64(m.Commands.WithLabelValues("kitchen", "turn_on", "ok")))
	assert.Equal(1.0, testutil.ToFloat64(m.Commands.WithLabelValues("kitchen", "turn_on", "error")))
}

func TestModbusInstrument(t *testing.T) {

	assert := assert.New(t)

	m := New()
	done := regmap.RecordTimer("ReadRegister", []regmap.ModbusInstrument{*m.ModbusInstrument()})
	done()

	assert.Equal(1, testutil.CollectAndCount(m.ModbusDuration, "yeelightpro_modbus_operation_duration_seconds"))
}
