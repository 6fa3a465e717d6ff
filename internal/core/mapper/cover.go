package mapper

import (
	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
)

// Raw cover properties.
const (
	PROP_CURRENT_POSITION      = "current_position"
	PROP_POSITION              = "position"
	PROP_CURRENT_ANGLE         = "current_angle"
	PROP_TARGET_ANGLE          = "target_angle"
	PROP_MOTOR                 = "motor"
	PROP_RUN_STATE             = "run_state"
	PROP_ROUTE_CALIBRATED      = "route_calibrated"
	PROP_TILT_ROUTE_CALIBRATED = "tilt_route_calibrated"
)

const (
	// ClosedThreshold is the dead band near zero that still counts as closed:
	// motors rarely settle on an exact zero.
	ClosedThreshold = 5
	MaxAngle        = 180
	MaxPosition     = 100

	MotorStop = "stop"

	// ProductTypeTiltCurtain marks curtain motors shipped with a tilt motor.
	ProductTypeTiltCurtain = 22
)

type CoverMotion int

const (
	CoverIdle CoverMotion = iota
	CoverOpening
	CoverClosing
)

// CoverPosition normalizes a raw current_position. ok is false when the raw
// value is not numeric, in which case the previous state should be kept.
func CoverPosition(raw any) (position int, closed bool, ok bool) {
	p, ok := Float(raw)
	if !ok {
		return 0, false, false
	}
	return clamp(round(p), 0, MaxPosition), IsClosed(p), true
}

func IsClosed(position float64) bool {
	return position <= ClosedThreshold
}

// TiltPosition converts a raw angle in degrees (0-180) into a tilt percentage.
// Any conversion failure yields nil, never an error.
func TiltPosition(angle any) *int {
	a, ok := Float(angle)
	if !ok {
		return nil
	}
	tilt := clamp(round(a*MaxPosition/MaxAngle), 0, MaxPosition)
	return &tilt
}

// TargetAngle converts a tilt percentage into a raw angle.
func TargetAngle(tilt int) int {
	return clamp(round(float64(tilt)*MaxAngle/MaxPosition), 0, MaxAngle)
}

func CoverMotionFromRunState(raw any) CoverMotion {
	switch String(raw) {
	case "opening":
		return CoverOpening
	case "closing":
		return CoverClosing
	default:
		return CoverIdle
	}
}

// Open and Close always target absolute positions, never a relative move.
func CoverOpenProps() domain.Props {
	return domain.Props{PROP_POSITION: MaxPosition}
}

func CoverCloseProps() domain.Props {
	return domain.Props{PROP_POSITION: 0}
}

// CoverStopProps sends the stop sentinel instead of a position. It stops
// both the lift and the tilt motor.
func CoverStopProps() domain.Props {
	return domain.Props{PROP_MOTOR: MotorStop}
}

func CoverPositionProps(position int) domain.Props {
	return domain.Props{PROP_POSITION: clamp(position, 0, MaxPosition)}
}

func CoverOpenTiltProps() domain.Props {
	return domain.Props{PROP_TARGET_ANGLE: MaxAngle}
}

func CoverCloseTiltProps() domain.Props {
	return domain.Props{PROP_TARGET_ANGLE: 0}
}

func CoverTiltProps(tilt int) domain.Props {
	return domain.Props{PROP_TARGET_ANGLE: TargetAngle(tilt)}
}
