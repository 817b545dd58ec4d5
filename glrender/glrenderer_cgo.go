//go:build !tinygo && cgo

package glrender

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/gany/glbuild"
	"github.com/soypat/glgl/v4.6-core/glgl"
)

type glProgram struct {
	prog     glgl.Program
	uniforms map[string]int32
	attribs  map[string]uint32
}

type glBuffers struct {
	vao     uint32
	vbos    map[string]uint32
	ebo     uint32
	version uint64
}

type glTexture struct {
	id      uint32
	target  uint32
	version uint64
}

type glFramebuffer struct {
	fbo, color, depth uint32
	version           uint64
}

// GLRenderer is a [Renderer] issuing OpenGL 4.6 commands. It must be used from
// the goroutine owning the current OpenGL context.
type GLRenderer struct {
	log           *slog.Logger
	target        *RenderTarget
	clear         [4]float32
	width, height int
	programs      map[*glbuild.Program]*glProgram
	buffers       map[*Geometry]*glBuffers
	textures      map[any]*glTexture
	framebuffers  map[*RenderTarget]*glFramebuffer
	items         []DrawItem
}

// NewGLRenderer returns a renderer drawing to the current OpenGL context. The
// context must be initialized, see ganyaux.
func NewGLRenderer(cfg GLRendererConfig) (*GLRenderer, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.New("invalid viewport size")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	return &GLRenderer{
		log:          logger,
		width:        cfg.Width,
		height:       cfg.Height,
		programs:     make(map[*glbuild.Program]*glProgram),
		buffers:      make(map[*Geometry]*glBuffers),
		textures:     make(map[any]*glTexture),
		framebuffers: make(map[*RenderTarget]*glFramebuffer),
	}, nil
}

func (r *GLRenderer) SetRenderTarget(rt *RenderTarget) { r.target = rt }

func (r *GLRenderer) RenderTarget() *RenderTarget { return r.target }

func (r *GLRenderer) SetClearColor(rgba [4]float32) { r.clear = rgba }

func (r *GLRenderer) ClearColor() [4]float32 { return r.clear }

func (r *GLRenderer) ViewportSize() (width, height int) { return r.width, r.height }

// SetViewportSize updates the screen framebuffer size, usually after a window resize.
func (r *GLRenderer) SetViewportSize(width, height int) { r.width, r.height = width, height }

func (r *GLRenderer) bindTarget() error {
	if r.target == nil {
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		gl.Viewport(0, 0, int32(r.width), int32(r.height))
		return nil
	}
	fb, err := r.framebuffer(r.target)
	if err != nil {
		return err
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb.fbo)
	w, h := r.target.Size()
	gl.Viewport(0, 0, int32(w), int32(h))
	return nil
}

func (r *GLRenderer) Clear() error {
	err := r.bindTarget()
	if err != nil {
		return err
	}
	gl.DepthMask(true)
	gl.ClearColor(r.clear[0], r.clear[1], r.clear[2], r.clear[3])
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	return glgl.Err()
}

func (r *GLRenderer) Render(d Drawable, cam Camera) error {
	if d == nil || cam == nil {
		return errors.New("nil drawable or camera")
	}
	err := r.bindTarget()
	if err != nil {
		return err
	}
	r.items = d.AppendDrawItems(r.items[:0])
	SortTransparent(r.items)
	view := cam.ViewMatrix()
	proj := cam.ProjectionMatrix()
	for i := range r.items {
		err = r.draw(&r.items[i], view, proj, cam)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *GLRenderer) draw(it *DrawItem, view, proj mgl32.Mat4, cam Camera) error {
	p, err := r.program(it.Program)
	if err != nil {
		return err
	}
	p.prog.Bind()
	defer p.prog.Unbind()
	modelView := view.Mul4(it.Model)
	normalMatrix := modelView.Mat3().Inv().Transpose()
	camPos := cam.Position()
	setMat4 := func(name string, m mgl32.Mat4) {
		if loc, ok := p.uniforms[name]; ok {
			gl.UniformMatrix4fv(loc, 1, false, &m[0])
		}
	}
	setMat4("modelMatrix", it.Model)
	setMat4("viewMatrix", view)
	setMat4("projectionMatrix", proj)
	setMat4("modelViewMatrix", modelView)
	if loc, ok := p.uniforms["normalMatrix"]; ok {
		gl.UniformMatrix3fv(loc, 1, false, &normalMatrix[0])
	}
	if loc, ok := p.uniforms["cameraPosition"]; ok {
		gl.Uniform3f(loc, camPos.X, camPos.Y, camPos.Z)
	}
	unit := int32(0)
	for _, u := range it.Program.Uniforms {
		name := it.Program.UniformName(u)
		loc, ok := p.uniforms[name]
		if !ok {
			continue
		}
		v := u.Value()
		switch v.Type {
		case glbuild.TypeFloat:
			gl.Uniform1f(loc, v.V[0])
		case glbuild.TypeVec2:
			gl.Uniform2f(loc, v.V[0], v.V[1])
		case glbuild.TypeVec3:
			gl.Uniform3f(loc, v.V[0], v.V[1], v.V[2])
		case glbuild.TypeVec4:
			gl.Uniform4f(loc, v.V[0], v.V[1], v.V[2], v.V[3])
		case glbuild.TypeMat3:
			gl.UniformMatrix3fv(loc, 1, false, &v.V[0])
		case glbuild.TypeMat4:
			gl.UniformMatrix4fv(loc, 1, false, &v.V[0])
		case glbuild.TypeSampler2D, glbuild.TypeSamplerCube:
			tex, err := r.texture(v.Sampler, v.Type)
			if err != nil {
				return fmt.Errorf("uniform %s: %w", name, err)
			}
			gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
			gl.BindTexture(tex.target, tex.id)
			gl.Uniform1i(loc, unit)
			unit++
		}
	}
	bufs, err := r.geometry(it.Geometry)
	if err != nil {
		return err
	}
	gl.BindVertexArray(bufs.vao)
	for name, loc := range p.attribs {
		_, ncomp, ok := it.Geometry.Attribute(name)
		if !ok {
			return fmt.Errorf("program attribute %q missing in geometry", name)
		}
		gl.BindBuffer(gl.ARRAY_BUFFER, bufs.vbos[name])
		gl.EnableVertexAttribArray(loc)
		gl.VertexAttribPointer(loc, int32(ncomp), gl.FLOAT, false, 0, gl.PtrOffset(0))
	}
	applyMaterial(it.Material)
	if it.Material.Points {
		gl.PointSize(max(it.Material.PointSize, 1))
		gl.DrawArrays(gl.POINTS, 0, int32(it.Geometry.NumVertices()))
	} else if bufs.ebo != 0 {
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, bufs.ebo)
		gl.DrawElements(gl.TRIANGLES, int32(len(it.Geometry.Indices())), gl.UNSIGNED_INT, gl.PtrOffset(0))
	} else {
		gl.DrawArrays(gl.TRIANGLES, 0, int32(it.Geometry.NumVertices()))
	}
	gl.BindVertexArray(0)
	return glgl.Err()
}

func glBlendFactor(f BlendFactor) uint32 {
	switch f {
	case BlendOne:
		return gl.ONE
	case BlendSrcAlpha:
		return gl.SRC_ALPHA
	case BlendOneMinusSrcAlpha:
		return gl.ONE_MINUS_SRC_ALPHA
	}
	return gl.ZERO
}

func applyMaterial(m Material) {
	if m.NoDepthTest {
		gl.Disable(gl.DEPTH_TEST)
	} else {
		gl.Enable(gl.DEPTH_TEST)
	}
	gl.DepthMask(!m.Transparent)
	if m.Blend {
		gl.Enable(gl.BLEND)
		gl.BlendFuncSeparate(glBlendFactor(m.Color.Src), glBlendFactor(m.Color.Dst), glBlendFactor(m.Alpha.Src), glBlendFactor(m.Alpha.Dst))
	} else {
		gl.Disable(gl.BLEND)
	}
	if m.CullBack {
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	} else {
		gl.Disable(gl.CULL_FACE)
	}
}

func (r *GLRenderer) program(prog *glbuild.Program) (*glProgram, error) {
	if p, ok := r.programs[prog]; ok {
		return p, nil
	}
	glprog, err := glgl.CompileProgram(glgl.ShaderSource{
		Vertex:   string(prog.Vertex) + "\x00",
		Fragment: string(prog.Fragment) + "\x00",
	})
	if err != nil {
		r.log.Error("compile program", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s\n\n%s\n\n%w", prog.Vertex, prog.Fragment, err)
	}
	p := &glProgram{prog: glprog, uniforms: make(map[string]int32), attribs: make(map[string]uint32)}
	glprog.Bind()
	defer glprog.Unbind()
	for _, name := range []string{"modelMatrix", "viewMatrix", "projectionMatrix", "modelViewMatrix", "normalMatrix", "cameraPosition"} {
		// Builtins unused by the program are optimized out.
		if loc, err := glprog.UniformLocation(name + "\x00"); err == nil {
			p.uniforms[name] = loc
		}
	}
	for _, u := range prog.Uniforms {
		name := prog.UniformName(u)
		if loc, err := glprog.UniformLocation(name + "\x00"); err == nil {
			p.uniforms[name] = loc
		}
	}
	for _, attr := range prog.Attributes {
		if loc, err := glprog.AttribLocation(attr.Name + "\x00"); err == nil {
			p.attribs[attr.Name] = loc
		}
	}
	r.programs[prog] = p
	r.log.Debug("compiled program", slog.Int("uniforms", len(prog.Uniforms)), slog.Int("attributes", len(prog.Attributes)))
	return p, nil
}

func (r *GLRenderer) geometry(g *Geometry) (*glBuffers, error) {
	bufs, ok := r.buffers[g]
	if ok && bufs.version == g.Version() {
		return bufs, nil
	}
	if !ok {
		bufs = &glBuffers{vbos: make(map[string]uint32)}
		gl.GenVertexArrays(1, &bufs.vao)
		r.buffers[g] = bufs
	}
	gl.BindVertexArray(bufs.vao)
	for _, name := range g.AttributeNames() {
		data, _, _ := g.Attribute(name)
		vbo, ok := bufs.vbos[name]
		if !ok {
			gl.GenBuffers(1, &vbo)
			bufs.vbos[name] = vbo
		}
		gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
		gl.BufferData(gl.ARRAY_BUFFER, 4*len(data), gl.Ptr(data), gl.DYNAMIC_DRAW)
	}
	if idx := g.Indices(); idx != nil {
		if bufs.ebo == 0 {
			gl.GenBuffers(1, &bufs.ebo)
		}
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, bufs.ebo)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, 4*len(idx), gl.Ptr(idx), gl.DYNAMIC_DRAW)
	} else if bufs.ebo != 0 {
		gl.DeleteBuffers(1, &bufs.ebo)
		bufs.ebo = 0
	}
	gl.BindVertexArray(0)
	bufs.version = g.Version()
	return bufs, glErrOrMessage("uploading geometry")
}

func (r *GLRenderer) texture(s glbuild.Sampler, t glbuild.Type) (*glTexture, error) {
	switch tex := s.(type) {
	case nil:
		return nil, errors.New("unbound sampler")
	case *Texture:
		if t != glbuild.TypeSampler2D {
			return nil, errors.New("2D texture bound to cube sampler")
		}
		for rt, fb := range r.framebuffers {
			if rt.Texture() == tex {
				return &glTexture{id: fb.color, target: gl.TEXTURE_2D}, nil
			}
		}
		gt, ok := r.textures[tex]
		if !ok {
			gt = &glTexture{target: gl.TEXTURE_2D, version: tex.Version() + 1}
			gl.GenTextures(1, &gt.id)
			r.textures[tex] = gt
		}
		if gt.version != tex.Version() {
			gl.BindTexture(gl.TEXTURE_2D, gt.id)
			uploadTexture2D(gl.TEXTURE_2D, tex)
			gt.version = tex.Version()
		}
		return gt, glErrOrMessage("uploading texture")
	case *CubeTexture:
		if t != glbuild.TypeSamplerCube {
			return nil, errors.New("cube texture bound to 2D sampler")
		}
		gt, ok := r.textures[tex]
		if !ok {
			gt = &glTexture{target: gl.TEXTURE_CUBE_MAP}
			gl.GenTextures(1, &gt.id)
			gl.BindTexture(gl.TEXTURE_CUBE_MAP, gt.id)
			for i, face := range tex.Faces {
				if face == nil {
					return nil, fmt.Errorf("cube texture missing face %d", i)
				}
				uploadTexture2D(gl.TEXTURE_CUBE_MAP_POSITIVE_X+uint32(i), face)
			}
			r.textures[tex] = gt
		}
		return gt, glErrOrMessage("uploading cube texture")
	}
	return nil, fmt.Errorf("unsupported sampler %T", s)
}

func uploadTexture2D(target uint32, tex *Texture) {
	internal := int32(gl.RGBA8)
	if tex.Format == FormatRGBA32F {
		internal = gl.RGBA32F
	}
	filter := int32(gl.LINEAR)
	if tex.Filter == FilterNearest {
		filter = gl.NEAREST
	}
	texTarget := uint32(gl.TEXTURE_2D)
	if target != gl.TEXTURE_2D {
		texTarget = gl.TEXTURE_CUBE_MAP
	}
	gl.TexImage2D(target, 0, internal, int32(tex.Width), int32(tex.Height), 0, gl.RGBA, gl.FLOAT, gl.Ptr(tex.Data))
	gl.TexParameteri(texTarget, gl.TEXTURE_MIN_FILTER, filter)
	gl.TexParameteri(texTarget, gl.TEXTURE_MAG_FILTER, filter)
	gl.TexParameteri(texTarget, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(texTarget, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
}

func (r *GLRenderer) framebuffer(rt *RenderTarget) (*glFramebuffer, error) {
	fb, ok := r.framebuffers[rt]
	if ok && fb.version == rt.Version() {
		return fb, nil
	}
	if !ok {
		fb = &glFramebuffer{}
		gl.GenFramebuffers(1, &fb.fbo)
		gl.GenTextures(1, &fb.color)
		gl.GenRenderbuffers(1, &fb.depth)
		r.framebuffers[rt] = fb
	}
	w, h := rt.Size()
	internal := int32(gl.RGBA8)
	if rt.Format() == FormatRGBA32F {
		internal = gl.RGBA32F
	}
	gl.BindTexture(gl.TEXTURE_2D, fb.color)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(w), int32(h), 0, gl.RGBA, gl.FLOAT, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindRenderbuffer(gl.RENDERBUFFER, fb.depth)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT24, int32(w), int32(h))
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, fb.color, 0)
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, fb.depth)
	if status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		return nil, glErrOrMessage(fmt.Sprintf("framebuffer %s incomplete: status %#x", rt, status))
	}
	fb.version = rt.Version()
	r.log.Debug("allocated framebuffer", slog.String("target", rt.String()))
	return fb, nil
}

// ReadTarget reads the color attachment of rt back into its texture's CPU data.
func (r *GLRenderer) ReadTarget(rt *RenderTarget) error {
	fb, err := r.framebuffer(rt)
	if err != nil {
		return err
	}
	w, h := rt.Size()
	tex := rt.Texture()
	tex.Data = make([]float32, 4*w*h)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb.fbo)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.FLOAT, gl.Ptr(tex.Data))
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	tex.version++
	return glErrOrMessage("reading render target")
}

// Delete releases all GPU resources held by the renderer.
func (r *GLRenderer) Delete() {
	for _, p := range r.programs {
		p.prog.Delete()
	}
	for _, b := range r.buffers {
		for _, vbo := range b.vbos {
			gl.DeleteBuffers(1, &vbo)
		}
		if b.ebo != 0 {
			gl.DeleteBuffers(1, &b.ebo)
		}
		gl.DeleteVertexArrays(1, &b.vao)
	}
	for _, t := range r.textures {
		gl.DeleteTextures(1, &t.id)
	}
	for _, fb := range r.framebuffers {
		gl.DeleteFramebuffers(1, &fb.fbo)
		gl.DeleteTextures(1, &fb.color)
		gl.DeleteRenderbuffers(1, &fb.depth)
	}
	clear(r.programs)
	clear(r.buffers)
	clear(r.textures)
	clear(r.framebuffers)
}

func glErrOrMessage(defaultMsg string) (err error) {
	err = glgl.Err()
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", defaultMsg, err)
}
