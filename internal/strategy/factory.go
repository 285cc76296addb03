package strategy

import (
	"errors"
	"fmt"
	"strings"
)

// Type identifies a built-in strategy.
type Type string

// Built-in strategy types.
const (
	TypeMomentum Type = "momentum"
	TypeValue    Type = "value"
	TypeGrowth   Type = "growth"
)

// ErrUnknownStrategy is returned when a config names a strategy type the
// factory does not know.
var ErrUnknownStrategy = errors.New("unknown strategy type")

// Config selects a built-in strategy and optionally overrides its
// thresholds. A nil params pointer means the strategy's defaults.
type Config struct {
	Type     Type
	Momentum *MomentumParams
	Value    *ValueParams
	Growth   *GrowthParams
}

// ParseType normalizes a strategy name from config or flags.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypeMomentum:
		return TypeMomentum, nil
	case TypeValue:
		return TypeValue, nil
	case TypeGrowth:
		return TypeGrowth, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// FromConfig builds the configured strategy.
func FromConfig(cfg Config) (Strategy, error) {
	switch cfg.Type {
	case TypeMomentum:
		params := DefaultMomentumParams()
		if cfg.Momentum != nil {
			params = *cfg.Momentum
		}
		return NewMomentum(params), nil

	case TypeValue:
		params := DefaultValueParams()
		if cfg.Value != nil {
			params = *cfg.Value
		}
		return NewValue(params), nil

	case TypeGrowth:
		params := DefaultGrowthParams()
		if cfg.Growth != nil {
			params = *cfg.Growth
		}
		return NewGrowth(params), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Type)
	}
}
