package actor

import (
	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
)

// parentRecorder spawns a transport actor as its child and collects what the
// child reports to its parent.
type parentRecorder struct {
	producer actor.Producer
	pids     chan *actor.PID
	events   chan domain.DevicePropsEvent
	commands chan ParsedCommand
}

func newParentRecorder(producer actor.Producer) *parentRecorder {
	return &parentRecorder{
		producer: producer,
		pids:     make(chan *actor.PID, 1),
		events:   make(chan domain.DevicePropsEvent, 16),
		commands: make(chan ParsedCommand, 16),
	}
}

func (p *parentRecorder) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		p.pids <- ctx.Spawn(actor.PropsFromProducer(p.producer))
	case domain.DevicePropsEvent:
		p.events <- msg
	case ParsedCommand:
		p.commands <- msg
	}
}
