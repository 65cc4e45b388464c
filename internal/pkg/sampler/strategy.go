package sampler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStrategy is returned for strategy names or values outside the closed set.
var ErrUnknownStrategy = errors.New("sampler: unknown strategy")

// Strategy is the closed set of frame selection strategies.
type Strategy uint8

const (
	Intelligent Strategy = iota + 1
	Uniform
	Motion
	Keyframe
)

var strategyNames = map[Strategy]string{
	Intelligent: "intelligent",
	Uniform:     "uniform",
	Motion:      "motion",
	Keyframe:    "keyframe",
}

// ParseStrategy maps a config value to a Strategy. Empty means Intelligent.
func ParseStrategy(s string) (Strategy, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return Intelligent, nil
	}
	for st, n := range strategyNames {
		if n == name {
			return st, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

func (s Strategy) String() string {
	if n, ok := strategyNames[s]; ok {
		return n
	}
	return fmt.Sprintf("strategy(%d)", uint8(s))
}

// Valid reports whether s is one of the defined strategies.
func (s Strategy) Valid() bool {
	_, ok := strategyNames[s]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Reason records why a timestamp was selected.
type Reason string

const (
	ReasonUniform      Reason = "uniform"
	ReasonMotion       Reason = "motion"
	ReasonSceneChange  Reason = "scene_change"
	ReasonProportional Reason = "proportional"
)
