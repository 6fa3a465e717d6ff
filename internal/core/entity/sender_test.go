package entity

import (
	"context"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
)

// recordingSender keeps every write and answers with a fixed outcome.
type recordingSender struct {
	sent    []domain.Props
	outcome domain.SendOutcome
	err     error
}

func (s *recordingSender) SendProps(_ context.Context, props domain.Props) (domain.SendOutcome, error) {
	s.sent = append(s.sent, props.Clone())
	return s.outcome, s.err
}

func (s *recordingSender) last() domain.Props {
	if len(s.sent) == 0 {
		return nil
	}
	return s.sent[len(s.sent)-1]
}

func testDevice() domain.Device {
	return domain.Device{Id: "living_room", Name: "Living room"}
}

func command(kind domain.CommandKind, value string) domain.EntityCommand {
	return domain.EntityCommand{DeviceId: "living_room", Kind: kind, Value: value}
}
