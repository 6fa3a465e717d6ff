// Package device owns the per-device collection of entity adapters. A
// Session replaces a shared entity registry: entities are looked up by their
// capability attr and inbound updates are routed to whoever accepts them.
package device

import (
	"context"
	"fmt"
	"slices"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/entity"

	"go.uber.org/zap"
)

// Change reports an entity touched by an update or a command.
type Change struct {
	Snapshot domain.EntitySnapshot
	Added    domain.FeatureSet
	Removed  domain.FeatureSet
}

func (c Change) FeaturesChanged() bool {
	return c.Added != 0 || c.Removed != 0
}

type Session struct {
	device   domain.Device
	entities map[string]entity.Entity
	logger   *zap.Logger
}

func NewSession(device domain.Device, logger *zap.Logger) *Session {
	return &Session{
		device:   device,
		entities: map[string]entity.Entity{},
		logger:   logger.With(zap.String("device", device.Id)),
	}
}

func (s *Session) Device() domain.Device {
	return s.device
}

func (s *Session) Add(e entity.Entity) error {
	if _, ok := s.entities[e.Attr()]; ok {
		return fmt.Errorf("device %s: duplicated entity %s", s.device.Id, e.Attr())
	}
	s.entities[e.Attr()] = e
	return nil
}

func (s *Session) Entity(attr string) (entity.Entity, bool) {
	e, ok := s.entities[attr]
	return e, ok
}

// Entities returns the entities sorted by attr.
func (s *Session) Entities() []entity.Entity {
	attrs := make([]string, 0, len(s.entities))
	for attr := range s.entities {
		attrs = append(attrs, attr)
	}
	slices.Sort(attrs)
	out := make([]entity.Entity, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, s.entities[attr])
	}
	return out
}

func (s *Session) Snapshots() []domain.EntitySnapshot {
	entities := s.Entities()
	out := make([]domain.EntitySnapshot, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Snapshot())
	}
	return out
}

// Apply routes an update to every entity accepting at least one of its keys
// and reports each of them, with the capability diff recomputed against the
// set before the update. Keys nobody accepts are ignored.
func (s *Session) Apply(props domain.Props) []Change {
	var changes []Change
	for _, e := range s.Entities() {
		if !accepts(e, props) {
			continue
		}
		before := e.Features()
		e.Apply(props)
		added, removed := before.Diff(e.Features())
		if added != 0 || removed != 0 {
			s.logger.Info("entity capabilities changed", zap.String("entity", e.Attr()),
				zap.Strings("added", added.Names()), zap.Strings("removed", removed.Names()))
		}
		changes = append(changes, Change{Snapshot: e.Snapshot(), Added: added, Removed: removed})
	}
	return changes
}

// Execute dispatches a command to the entity registered under cmd.Attr.
// The returned change reflects any optimistic update, even when the send
// failed.
func (s *Session) Execute(ctx context.Context, cmd domain.EntityCommand) (Change, error) {
	e, ok := s.Entity(cmd.Attr)
	if !ok {
		return Change{}, fmt.Errorf("%w: %s/%s", domain.ErrUnknownEntity, s.device.Id, cmd.Attr)
	}
	before := e.Features()
	err := e.Execute(ctx, cmd)
	added, removed := before.Diff(e.Features())
	return Change{Snapshot: e.Snapshot(), Added: added, Removed: removed}, err
}

func accepts(e entity.Entity, props domain.Props) bool {
	for k := range props {
		if e.Accepts(k) {
			return true
		}
	}
	return false
}
