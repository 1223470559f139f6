package cdc

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Params controls where the chunker places boundaries. Changing any of the
// boundary fields changes every chunk of every source, so indexes are only
// comparable when they were produced with the same Params.
type Params struct {
	MinChunk          int    `yaml:"min_chunk"`
	MaxChunk          int    `yaml:"max_chunk"`
	WindowSize        int    `yaml:"window_size"`
	AvgDivisor        uint32 `yaml:"avg_divisor"`
	BoundaryRemainder uint32 `yaml:"boundary_remainder"`
	// BufSize only sizes the read buffer and has no effect on boundaries.
	BufSize int `yaml:"buf_size"`
}

func DefaultParams() Params {
	return Params{
		MinChunk:          2 * 1024,
		MaxChunk:          16 * 1024,
		WindowSize:        48,
		AvgDivisor:        4096,
		BoundaryRemainder: 13,
		BufSize:           64 * 1024,
	}
}

func (p Params) Validate() error {
	switch {
	case p.WindowSize <= 0:
		return fmt.Errorf("%w: window size must be positive, got %d", ErrInvalidParams, p.WindowSize)
	case p.MinChunk < p.WindowSize:
		return fmt.Errorf("%w: min chunk %d is smaller than window size %d", ErrInvalidParams, p.MinChunk, p.WindowSize)
	case p.MaxChunk < p.MinChunk:
		return fmt.Errorf("%w: max chunk %d is smaller than min chunk %d", ErrInvalidParams, p.MaxChunk, p.MinChunk)
	case uint64(p.MaxChunk) > math.MaxUint32:
		return fmt.Errorf("%w: max chunk %d does not fit a 32-bit length", ErrInvalidParams, p.MaxChunk)
	case p.AvgDivisor == 0:
		return fmt.Errorf("%w: average chunk divisor must be positive", ErrInvalidParams)
	case p.BoundaryRemainder >= p.AvgDivisor:
		return fmt.Errorf("%w: boundary remainder %d is not below divisor %d", ErrInvalidParams, p.BoundaryRemainder, p.AvgDivisor)
	case p.BufSize <= 0:
		return fmt.Errorf("%w: read buffer size must be positive, got %d", ErrInvalidParams, p.BufSize)
	}
	return nil
}

// TargetBlockSize is the value recorded in the index header.
func (p Params) TargetBlockSize() uint32 {
	return p.AvgDivisor
}

// LoadParams reads a YAML parameter file. Fields missing from the file keep
// their DefaultParams values.
func LoadParams(path string) (Params, error) {
	p := DefaultParams()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read params file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse params file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
