package glrender

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrTargetClaimed is returned when claiming a render target already claimed by another owner.
var ErrTargetClaimed = errors.New("render target already claimed")

// RenderTarget is an offscreen framebuffer with a color and depth attachment. Its color
// attachment can be sampled as a texture by later passes.
type RenderTarget struct {
	name    string
	width   int
	height  int
	format  Format
	texture *Texture
	version uint64
}

// NewRenderTarget returns a render target. Prefer [TargetPool.NewTarget] so allocations are accounted for.
func NewRenderTarget(name string, width, height int, format Format) (*RenderTarget, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("render target %q: invalid size %dx%d", name, width, height)
	}
	return &RenderTarget{
		name:    name,
		width:   width,
		height:  height,
		format:  format,
		texture: &Texture{Width: width, Height: height, Format: format, Filter: FilterLinear},
	}, nil
}

func (rt *RenderTarget) Name() string { return rt.name }

func (rt *RenderTarget) Size() (width, height int) { return rt.width, rt.height }

func (rt *RenderTarget) Format() Format { return rt.format }

// Texture returns the color attachment. It has no CPU data unless a renderer reads it back.
func (rt *RenderTarget) Texture() *Texture { return rt.texture }

// Version increments every time the target is resized so renderers reallocate attachments.
func (rt *RenderTarget) Version() uint64 { return rt.version }

// SetSize resizes the target. It is a no-op if the size is unchanged.
func (rt *RenderTarget) SetSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("render target %q: invalid size %dx%d", rt.name, width, height)
	}
	if width == rt.width && height == rt.height {
		return nil
	}
	rt.width, rt.height = width, height
	rt.texture.Width, rt.texture.Height = width, height
	rt.texture.Data = nil
	rt.version++
	return nil
}

func (rt *RenderTarget) String() string {
	return rt.name + "(" + strconv.Itoa(rt.width) + "x" + strconv.Itoa(rt.height) + " " + rt.format.String() + ")"
}

// TargetPool owns render targets shared between pipeline instances. Shared targets
// are used under an explicit claim: the owner holding a claim has exclusive use of
// the target until it releases it. A TargetPool is not safe for concurrent use;
// all rendering happens on a single goroutine.
type TargetPool struct {
	env    map[int]*RenderTarget
	claims map[*RenderTarget]any
	allocs int
}

func NewTargetPool() *TargetPool {
	return &TargetPool{
		env:    make(map[int]*RenderTarget),
		claims: make(map[*RenderTarget]any),
	}
}

var defaultPool = NewTargetPool()

// DefaultTargetPool returns the process wide pool.
func DefaultTargetPool() *TargetPool { return defaultPool }

// EnvironmentTarget returns the float target of the given square size shared by every
// pipeline capturing environments at that size. It is allocated on first use.
func (p *TargetPool) EnvironmentTarget(size int) (*RenderTarget, error) {
	if rt, ok := p.env[size]; ok {
		return rt, nil
	}
	rt, err := p.NewTarget("environment"+strconv.Itoa(size), size, size, FormatRGBA32F)
	if err != nil {
		return nil, err
	}
	p.env[size] = rt
	return rt, nil
}

// NewTarget allocates a render target accounted for by the pool.
func (p *TargetPool) NewTarget(name string, width, height int, format Format) (*RenderTarget, error) {
	rt, err := NewRenderTarget(name, width, height, format)
	if err != nil {
		return nil, err
	}
	p.allocs++
	return rt, nil
}

// Allocations returns the number of targets allocated through the pool.
func (p *TargetPool) Allocations() int { return p.allocs }

// Claim gives owner exclusive use of rt until release is called. Returns
// [ErrTargetClaimed] if another owner holds a claim. Claiming a target already
// held by the same owner is also an error, claims do not nest.
func (p *TargetPool) Claim(rt *RenderTarget, owner any) (release func(), err error) {
	if rt == nil || owner == nil {
		return nil, errors.New("nil target or owner")
	}
	if holder, ok := p.claims[rt]; ok {
		return nil, fmt.Errorf("claim %s by %T held by %T: %w", rt, owner, holder, ErrTargetClaimed)
	}
	p.claims[rt] = owner
	released := false
	return func() {
		if !released {
			released = true
			delete(p.claims, rt)
		}
	}, nil
}

// Owner returns the current claim holder of rt or nil.
func (p *TargetPool) Owner(rt *RenderTarget) any { return p.claims[rt] }
