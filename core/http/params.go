package http

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrParamNotFound = errors.New("parameter not found")
)

// Params holds the path parameters captured by the route trie
type Params map[string]string

// Get returns the raw value and whether it was captured
func (p Params) Get(name string) (string, bool) {
	v, ok := p[name]
	return v, ok
}

// String returns a captured parameter
func (p Params) String(name string) (string, error) {
	v, ok := p[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrParamNotFound, name)
	}
	return v, nil
}

// Int converts a captured parameter to int
func (p Params) Int(name string) (int, error) {
	v, err := p.String(name)
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", name, err)
	}
	return i, nil
}

// Int64 converts a captured parameter to int64
func (p Params) Int64(name string) (int64, error) {
	v, err := p.String(name)
	if err != nil {
		return 0, err
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", name, err)
	}
	return i, nil
}

// Float converts a captured parameter to float64
func (p Params) Float(name string) (float64, error) {
	v, err := p.String(name)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", name, err)
	}
	return f, nil
}

// Bool converts a captured parameter to bool
func (p Params) Bool(name string) (bool, error) {
	v, err := p.String(name)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parameter %s: %w", name, err)
	}
	return b, nil
}

// Clone copies the parameters
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
