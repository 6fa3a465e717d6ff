package domain

import (
	"slices"
)

// Props is a raw device property dictionary, keyed by the vendor property name.
// Values are whatever the transport decoded: float64, int, bool or string.
type Props map[string]any

func (p Props) Has(key string) bool {
	_, ok := p[key]
	return ok
}

func (p Props) HasAny(keys ...string) bool {
	for _, k := range keys {
		if p.Has(k) {
			return true
		}
	}
	return false
}

// Keys returns the property names sorted.
func (p Props) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (p Props) Clone() Props {
	c := make(Props, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// SendOutcome is what the device transport knows about a property write.
type SendOutcome int

const (
	// SendUnknown means the transport gave no indication either way.
	SendUnknown SendOutcome = iota
	SendSucceeded
	SendFailed
)

func (o SendOutcome) String() string {
	switch o {
	case SendSucceeded:
		return "succeeded"
	case SendFailed:
		return "failed"
	default:
		return "unknown"
	}
}
