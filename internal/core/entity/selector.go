package entity

import (
	"context"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/mapper"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/port"

	"go.uber.org/zap"
)

const DEFAULT_SELECT_PLACEHOLDER = "off"

type Select struct {
	base
	key     string
	options []string
	current *string
}

func NewSelect(cfg Config, sender port.Sender, logger *zap.Logger) *Select {
	placeholder := cfg.Placeholder
	if placeholder == "" {
		placeholder = DEFAULT_SELECT_PLACEHOLDER
	}
	key := valueKey(cfg)
	return &Select{
		base:    newBase(cfg, []string{key}, sender, logger),
		key:     key,
		options: mapper.SelectOptions(cfg.Enum, placeholder),
	}
}

func (s *Select) Apply(props domain.Props) {
	if v, ok := props[s.key]; ok {
		option := mapper.SelectedOption(v)
		s.current = &option
	}
}

func (s *Select) Options() []string {
	return s.options
}

func (s *Select) CurrentOption() *string {
	return s.current
}

func (s *Select) Snapshot() domain.EntitySnapshot {
	values := map[string]any{domain.VALUE_OPTION: nil}
	if s.current != nil {
		values[domain.VALUE_OPTION] = *s.current
	}
	return s.snapshot(values, domain.EntityDescriptor{Options: s.options})
}

func (s *Select) Execute(ctx context.Context, cmd domain.EntityCommand) error {
	if cmd.Kind != domain.CommandSelectOption {
		return unsupported(cmd)
	}
	return s.SelectOption(ctx, cmd.Value)
}

// SelectOption writes the option as-is. Under the default policy the local
// option only moves when the transport did not report an explicit failure.
func (s *Select) SelectOption(ctx context.Context, option string) error {
	props := mapper.SelectOptionProps(s.key, option)
	apply, err := s.send(ctx, props)
	if apply {
		s.Apply(props)
	}
	return err
}
