package entity

import (
	"fmt"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
)

// OptimisticPolicy decides whether local state follows a command before the
// device reports back.
type OptimisticPolicy string

const (
	// OptimisticAlways updates local state whatever the send outcome.
	OptimisticAlways OptimisticPolicy = "always"
	// OptimisticUnlessFailed updates local state unless the transport
	// explicitly reported a failure. No indication counts as success.
	OptimisticUnlessFailed OptimisticPolicy = "unless_failed"
	// OptimisticNever waits for the device to report the new state.
	OptimisticNever OptimisticPolicy = "never"
)

func ParseOptimisticPolicy(s string) (OptimisticPolicy, error) {
	switch p := OptimisticPolicy(s); p {
	case OptimisticAlways, OptimisticUnlessFailed, OptimisticNever:
		return p, nil
	}
	return "", fmt.Errorf("unknown optimistic policy %q", s)
}

func (p OptimisticPolicy) ShouldApply(outcome domain.SendOutcome) bool {
	switch p {
	case OptimisticAlways:
		return true
	case OptimisticUnlessFailed:
		return outcome != domain.SendFailed
	default:
		return false
	}
}

// DefaultPolicy: fans follow their commands immediately, selects unless the
// send failed, covers and climates wait for the device.
func DefaultPolicy(kind domain.EntityKind) OptimisticPolicy {
	switch kind {
	case domain.KindFan:
		return OptimisticAlways
	case domain.KindSelect:
		return OptimisticUnlessFailed
	default:
		return OptimisticNever
	}
}
