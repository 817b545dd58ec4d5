package glrender

// BlendFactor is a blending equation source or destination factor.
type BlendFactor uint8

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
)

// BlendFunc is the source and destination factors of an additive blending equation.
type BlendFunc struct {
	Src, Dst BlendFactor
}

var (
	// BlendReplace writes the source unchanged.
	BlendReplace = BlendFunc{Src: BlendOne, Dst: BlendZero}
	// BlendAdditive sums source and destination.
	BlendAdditive = BlendFunc{Src: BlendOne, Dst: BlendOne}
	// BlendAlpha is the conventional transparency blending.
	BlendAlpha = BlendFunc{Src: BlendSrcAlpha, Dst: BlendOneMinusSrcAlpha}
)

// Material holds fixed function render state of a mesh.
type Material struct {
	// Transparent meshes are drawn after opaque meshes with depth writes disabled.
	Transparent bool
	// Blend enables blending with Color and Alpha functions.
	Blend bool
	Color BlendFunc
	Alpha BlendFunc
	// NoDepthTest disables depth testing.
	NoDepthTest bool
	// CullBack culls back facing triangles. Meshes are double sided by default.
	CullBack bool
	// Points draws vertices as points of PointSize pixels.
	Points    bool
	PointSize float32
}

// DefaultMaterial is opaque, depth tested and double sided.
func DefaultMaterial() Material {
	return Material{Color: BlendReplace, Alpha: BlendReplace}
}

// TransparentMaterial blends with conventional alpha blending.
func TransparentMaterial() Material {
	return Material{Transparent: true, Blend: true, Color: BlendAlpha, Alpha: BlendAlpha}
}
