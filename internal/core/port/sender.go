package port

import (
	"context"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
)

// Sender writes raw properties to one device. A non-nil error always counts
// as an explicit failure; a nil error may still carry SendFailed.
type Sender interface {
	SendProps(ctx context.Context, props domain.Props) (domain.SendOutcome, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, props domain.Props) (domain.SendOutcome, error)

func (f SenderFunc) SendProps(ctx context.Context, props domain.Props) (domain.SendOutcome, error) {
	return f(ctx, props)
}
