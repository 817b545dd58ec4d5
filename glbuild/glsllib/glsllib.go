package glsllib

import (
	_ "embed"

	"github.com/soypat/gany/glbuild"
)

//go:embed isocolor.glsl
var isoColorSrc []byte

// IsoColor maps a scalar linearly onto a 1D color lookup texture:
//
//	vec3 ganyIsoColor(sampler2D colorMap, float vmin, float vmax, float data)
func IsoColor() *glbuild.FuncDef {
	def := glbuild.MustFuncDef(isoColorSrc)
	def.SetCPU(isoColorCPU(LinearPosition))
	return def
}

//go:embed isocolorlog.glsl
var isoColorLogSrc []byte

// IsoColorLog maps a scalar logarithmically onto a 1D color lookup texture.
// Non-positive bounds and data are clamped to the smallest positive float:
//
//	vec3 ganyIsoColorLog(sampler2D colorMap, float vmin, float vmax, float data)
func IsoColorLog() *glbuild.FuncDef {
	def := glbuild.MustFuncDef(isoColorLogSrc)
	def.SetCPU(isoColorCPU(LogPosition))
	return def
}

//go:embed causticsmarch.glsl
var causticsMarchSrc []byte

// CausticsMarch refracts light through the water surface and marches the environment
// map to find where the ray lands. Returns the object space landing position.
// Keywords oldPosition, newPosition (vec3), waterDepth and depth (float) must be bound to varyings:
//
//	vec3 ganyCausticsMarch(sampler2D envMap, float deltaEnvMapTexture, vec3 position, vec3 normal, vec3 light)
func CausticsMarch() *glbuild.FuncDef {
	return glbuild.MustFuncDef(causticsMarchSrc)
}

//go:embed causticsintensity.glsl
var causticsIntensitySrc []byte

// CausticsIntensity computes the caustics intensity from the ratio of the ray origin and
// landing footprints using screen space derivatives. Fragment stage only:
//
//	vec3 ganyCausticsIntensity(vec3 oldPosition, vec3 newPosition, float waterDepth, float depth, float causticsFactor)
func CausticsIntensity() *glbuild.FuncDef {
	return glbuild.MustFuncDef(causticsIntensitySrc)
}

//go:embed waterrefraction.glsl
var waterRefractionSrc []byte

// WaterReflectionRefraction computes the reflected direction, Fresnel reflection factor and
// projected refraction position of the water surface. Keywords reflected (vec3),
// reflectionFactor (float) and refractedPosition (vec2) must be bound to varyings:
//
//	void ganyWaterReflectionRefraction(vec3 position, vec3 normal)
func WaterReflectionRefraction() *glbuild.FuncDef {
	return glbuild.MustFuncDef(waterRefractionSrc)
}

//go:embed watercolorskybox.glsl
var waterColorSkyboxSrc []byte

// WaterColorSkybox mixes refraction with a skybox reflection. Reads the same keywords
// as [WaterReflectionRefraction]:
//
//	vec3 ganyWaterColorSkybox(sampler2D refractionMap, samplerCube skybox)
func WaterColorSkybox() *glbuild.FuncDef {
	return glbuild.MustFuncDef(waterColorSkyboxSrc)
}

//go:embed watercolorflat.glsl
var waterColorFlatSrc []byte

// WaterColorFlat mixes refraction with a flat sky color. Reads keywords reflectionFactor
// and refractedPosition:
//
//	vec3 ganyWaterColorFlat(sampler2D refractionMap)
func WaterColorFlat() *glbuild.FuncDef {
	return glbuild.MustFuncDef(waterColorFlatSrc)
}

//go:embed envcapture.glsl
var envCaptureSrc []byte

// EnvCapture writes world position and clip space depth of a vertex to keywords
// envPosition (vec3) and envDepth (float):
//
//	void ganyEnvCapture(vec3 position)
func EnvCapture() *glbuild.FuncDef {
	return glbuild.MustFuncDef(envCaptureSrc)
}

//go:embed underwatervertex.glsl
var underWaterVertexSrc []byte

// UnderWaterVertex writes the light space position and tri-planar texture blending
// weights of a caustics receiver to keywords lightPosition and textureBlending (vec3):
//
//	void ganyUnderWaterVertex(vec3 position, vec3 normal, mat4 lightProjectionMatrix, mat4 lightViewMatrix)
func UnderWaterVertex() *glbuild.FuncDef {
	return glbuild.MustFuncDef(underWaterVertexSrc)
}

//go:embed underwatercolor.glsl
var underWaterColorSrc []byte

// UnderWaterColor shades a caustics receiver, adding blurred caustics where the receiver is
// submerged and not occluded from the light. Reads keywords lightPosition and textureBlending:
//
//	vec3 ganyUnderWaterColor(sampler2D caustics, sampler2D envTexture, float useTexturing, vec3 light, vec3 defaultColor, vec3 worldPosition, vec3 worldNormal, float underwater)
func UnderWaterColor() *glbuild.FuncDef {
	def := glbuild.MustFuncDef(underWaterColorSrc)
	def.Require(Blur(), Noise())
	return def
}

//go:embed blur.glsl
var blurSrc []byte

// Blur is a 5 tap gaussian blur of the red channel of a texture along direction:
//
//	float ganyBlur(sampler2D image, vec2 uv, vec2 resolution, vec2 direction)
func Blur() *glbuild.FuncDef {
	return glbuild.MustFuncDef(blurSrc)
}

//go:embed random2.glsl
var random2Src []byte

// Random2 is a pseudo random 2D gradient in [-1, 1]:
//
//	vec2 ganyRandom2(vec2 st)
func Random2() *glbuild.FuncDef {
	return glbuild.MustFuncDef(random2Src)
}

//go:embed noise.glsl
var noiseSrc []byte

// Noise is 2D gradient noise:
//
//	float ganyNoise(vec2 st)
func Noise() *glbuild.FuncDef {
	def := glbuild.MustFuncDef(noiseSrc)
	def.Require(Random2())
	return def
}
