package gany

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/gany/glbuild"
	"github.com/soypat/gany/glbuild/glsllib"
	"github.com/soypat/gany/glrender"
	"github.com/soypat/geometry/ms3"
)

// UnderWaterConfig configures an [UnderWater] receiver.
type UnderWaterConfig struct {
	// DefaultColor tints the generated sand texture. Defaults to (0.951, 1, 0.825).
	DefaultColor ms3.Vec
	// Texture is mapped tri-planarly onto the receiver. If nil generated sand is used.
	Texture *glrender.Texture
}

// UnderWater receives the caustics computed by a [Water] effect. Its meshes are
// shaded with the caustics where the scalar input is positive. A receiver is handed
// to the water in [WaterConfig.UnderWater] and drawn by it.
type UnderWater struct {
	*chain
	// envMeshes write world position and depth from the light's point of view.
	envMeshes []*Mesh

	light        *glbuild.Uniform
	lightProj    *glbuild.Uniform
	lightView    *glbuild.Uniform
	caustics     *glbuild.Uniform
	envTexture   *glbuild.Uniform
	useTexturing *glbuild.Uniform
	defaultColor *glbuild.Uniform
	placeholder  *glrender.Texture
}

var _ Effect = (*UnderWater)(nil)

// NewUnderWater returns a caustics receiver on parent. The scalar input marks
// submerged vertices with positive values.
func NewUnderWater(parent Blocker, in Input, cfg UnderWaterConfig) (*UnderWater, error) {
	if cfg.DefaultColor == (ms3.Vec{}) {
		cfg.DefaultColor = ms3.Vec{X: 0.951, Y: 1, Z: 0.825}
	}
	placeholder, err := glrender.NewTexture(1, 1, glrender.FormatRGBA8)
	if err != nil {
		return nil, err
	}
	c, err := newChain(parent, in, 1, glbuild.MaterialBasic)
	if err != nil {
		return nil, err
	}
	uw := &UnderWater{
		chain:        c,
		light:        glbuild.NewUniform(glbuild.Vec3(ms3.Vec{Z: -1})),
		lightProj:    glbuild.NewUniform(glbuild.Mat4(mgl32.Ident4())),
		lightView:    glbuild.NewUniform(glbuild.Mat4(mgl32.Ident4())),
		caustics:     glbuild.NewUniform(glbuild.Texture2D(placeholder)),
		envTexture:   glbuild.NewUniform(glbuild.Texture2D(placeholder)),
		useTexturing: glbuild.NewUniform(glbuild.Float(0)),
		defaultColor: glbuild.NewUniform(glbuild.Vec3(cfg.DefaultColor)),
		placeholder:  placeholder,
	}
	err = uw.SetTexture(cfg.Texture)
	if err != nil {
		return nil, err
	}
	for i, m := range uw.block.meshes {
		err = uw.shade(m)
		if err != nil {
			return nil, err
		}
		env, err := envCaptureMesh(uw.parent.meshes[i])
		if err != nil {
			return nil, err
		}
		uw.envMeshes = append(uw.envMeshes, env)
	}
	uw.updateEnvMatrix()
	uw.subscribe(uw.block.TransformChanged.Subscribe(func(*Block) { uw.updateEnvMatrix() }))
	err = uw.init()
	if err != nil {
		return nil, err
	}
	return uw, nil
}

// shade sets the receiver shading of a display mesh.
func (uw *UnderWater) shade(m *Mesh) error {
	lightPosition := glbuild.NewVarying(glbuild.TypeVec3)
	textureBlending := glbuild.NewVarying(glbuild.TypeVec3)
	vertexDef := glsllib.UnderWaterVertex()
	colorDef := glsllib.UnderWaterColor()
	bld := glbuild.Builder{NoPanic: true}
	for _, def := range []*glbuild.FuncDef{vertexDef, colorDef} {
		bld.Keyword(def, "lightPosition", lightPosition)
		bld.Keyword(def, "textureBlending", textureBlending)
	}
	transformed := m.Expr(SlotTransform)
	vertex := bld.Call(vertexDef, transformed, glbuild.Normal(), uw.lightProj, uw.lightView)
	// Texturing follows the displayed vertex, warps included.
	homogeneous := bld.Construct(glbuild.TypeVec4, transformed, glbuild.LitFloat(1))
	worldPosition := bld.Swizzle(bld.Mul(glbuild.ModelMatrix(), homogeneous), "xyz")
	color := bld.Call(colorDef, uw.caustics, uw.envTexture, uw.useTexturing, uw.light, uw.defaultColor,
		worldPosition, glbuild.WorldNormal(), uw.inputRef)
	if err := bld.Err(); err != nil {
		return err
	}
	err := m.AddVertexExpr(vertex)
	if err != nil {
		return err
	}
	return m.Combine(SlotColor, OpAssign, color)
}

// envCaptureMesh returns a copy of m writing world position to color and
// clip space depth to alpha.
func envCaptureMesh(m *Mesh) (*Mesh, error) {
	env := m.Copy(glbuild.MaterialBasic)
	env.SetMaterial(glrender.DefaultMaterial())
	envPosition := glbuild.NewVarying(glbuild.TypeVec3)
	envDepth := glbuild.NewVarying(glbuild.TypeFloat)
	def := glsllib.EnvCapture()
	bld := glbuild.Builder{NoPanic: true}
	bld.Keyword(def, "envPosition", envPosition)
	bld.Keyword(def, "envDepth", envDepth)
	capture := bld.Call(def, m.Expr(SlotTransform))
	if err := bld.Err(); err != nil {
		return nil, err
	}
	err := env.AddVertexExpr(capture)
	if err == nil {
		err = env.Combine(SlotColor, OpAssign, envPosition)
	}
	if err == nil {
		err = env.Combine(SlotAlpha, OpAssign, envDepth)
	}
	if err != nil {
		return nil, err
	}
	return env, nil
}

func (uw *UnderWater) Slots() []Slot { return []Slot{SlotColor} }

// Rebuild recompiles the receiver's display and environment capture meshes.
func (uw *UnderWater) Rebuild() error {
	err := uw.chain.Rebuild()
	if err != nil {
		return err
	}
	for _, m := range uw.envMeshes {
		err = m.Rebuild()
		if err != nil {
			return err
		}
	}
	return nil
}

// EnvMeshes returns the meshes drawn into the environment map.
func (uw *UnderWater) EnvMeshes() []*Mesh { return uw.envMeshes }

func (uw *UnderWater) DefaultColor() ms3.Vec { return uw.defaultColor.Value().Vec3() }

// SetDefaultColor sets the tint of the generated sand texture. No rebuild is needed.
func (uw *UnderWater) SetDefaultColor(c ms3.Vec) error { return uw.defaultColor.SetVec3(c) }

// SetTexture sets the texture mapped onto the receiver. nil selects generated sand.
// No rebuild is needed.
func (uw *UnderWater) SetTexture(tex *glrender.Texture) error {
	if tex == nil {
		err := uw.envTexture.SetSampler(uw.placeholder)
		if err != nil {
			return err
		}
		return uw.useTexturing.SetFloat(0)
	}
	err := uw.envTexture.SetSampler(tex)
	if err != nil {
		return err
	}
	return uw.useTexturing.SetFloat(1)
}

// setLight sets the light direction and the light camera matrices used to
// look up the caustics texture.
func (uw *UnderWater) setLight(light ms3.Vec, projection, view mgl32.Mat4) error {
	err := uw.light.SetVec3(light)
	if err == nil {
		err = uw.lightProj.SetMat4(projection)
	}
	if err == nil {
		err = uw.lightView.SetMat4(view)
	}
	return err
}

// CausticsTexture returns the caustics texture the receiver is shaded with.
func (uw *UnderWater) CausticsTexture() glbuild.Sampler { return uw.caustics.Value().Sampler }

func (uw *UnderWater) setCausticsTexture(s glbuild.Sampler) error {
	return uw.caustics.SetSampler(s)
}

// updateEnvMatrix keeps the environment capture meshes at the block's transform.
func (uw *UnderWater) updateEnvMatrix() {
	model := uw.block.ModelMatrix()
	for _, m := range uw.envMeshes {
		m.SetModel(model)
	}
}

// renderEnvMap draws the environment capture meshes as seen by the light camera.
func (uw *UnderWater) renderEnvMap(r glrender.Renderer, lightCamera glrender.Camera) error {
	var items glrender.DrawItems
	for _, m := range uw.envMeshes {
		if m.NeedsRebuild() {
			err := m.Rebuild()
			if err != nil {
				return err
			}
		}
		items = m.AppendDrawItems(items)
	}
	return r.Render(items, lightCamera)
}
