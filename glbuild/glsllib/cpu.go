package glsllib

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/gany/glbuild"
	"github.com/soypat/geometry/ms3"
)

// MinPositive is the smallest positive normal float32. Logarithmic color
// scales clamp non-positive bounds and data to it.
const MinPositive = 0x1p-126

// MaxMarchIterations is the environment march budget of [CausticsMarch].
const MaxMarchIterations = 50

// LinearPosition returns the normalized lookup position of data within [vmin, vmax].
func LinearPosition(vmin, vmax, data float32) float32 {
	return (data - vmin) / (vmax - vmin)
}

// LogPosition returns the normalized logarithmic lookup position of data within [vmin, vmax].
func LogPosition(vmin, vmax, data float32) float32 {
	lmin := math32.Log(math32.Max(vmin, MinPositive))
	lmax := math32.Log(math32.Max(vmax, MinPositive))
	return (math32.Log(math32.Max(data, MinPositive)) - lmin) / (lmax - lmin)
}

func isoColorCPU(position func(vmin, vmax, data float32) float32) glbuild.CPUFunc {
	return func(env glbuild.CPUEnv, args []glbuild.Value) (glbuild.Value, error) {
		if len(args) != 4 {
			return glbuild.Value{}, fmt.Errorf("iso color: want 4 arguments, got %d", len(args))
		}
		t := position(args[1].Float(), args[2].Float(), args[3].Float())
		texel := env.Sample(args[0].Sampler, [3]float32{t, 0, 0})
		return glbuild.Vec3(ms3.Vec{X: texel[0], Y: texel[1], Z: texel[2]}), nil
	}
}

// CausticsIntensityCPU is the CPU counterpart of [CausticsIntensity] given the
// ray origin and landing footprint areas. The result is never negative and is
// zero when the landing point lies in front of the water surface (depth < waterDepth).
func CausticsIntensityCPU(oldArea, newArea, waterDepth, depth, causticsFactor float32) float32 {
	if depth < waterDepth {
		return 0
	}
	newArea = math32.Max(newArea, 1e-12)
	return math32.Max(causticsFactor*((oldArea/newArea)-1), 0)
}

// EnvSampler reads an environment map texel at normalized coordinates.
// Texels store world position in xyz and clip space depth in w.
type EnvSampler func(uv [2]float32) [4]float32

// March is the CPU counterpart of the environment march in [CausticsMarch]. start and
// delta are in clip space. It returns the last sampled texel and whether the
// ray hit the environment before exhausting [MaxMarchIterations]. A ray that
// does not hit still returns the last sample, which is used as the landing point.
func March(env EnvSampler, start [2]float32, startDepth float32, delta [2]float32, deltaDepth float32) (texel [4]float32, hit bool) {
	uv := func(p [2]float32) [2]float32 { return [2]float32{0.5 + 0.5*p[0], 0.5 + 0.5*p[1]} }
	pos := start
	depth := startDepth
	texel = env(uv(pos))
	for i := 0; i < MaxMarchIterations; i++ {
		pos[0] += delta[0]
		pos[1] += delta[1]
		depth += deltaDepth
		if texel[3] <= depth {
			return texel, true
		}
		texel = env(uv(pos))
	}
	return texel, false
}

// Fresnel is the CPU counterpart of the reflection factor of [WaterReflectionRefraction].
// eye is the normalized direction from the camera to the surface point.
func Fresnel(eye, normal ms3.Vec) float32 {
	const (
		fresnelBias  = 0.1
		fresnelPower = 2
		fresnelScale = 1
	)
	if ms3.Dot(eye, normal) > 0 {
		normal = ms3.Scale(-1, normal)
	}
	return fresnelBias + fresnelScale*math32.Pow(math32.Max(1+ms3.Dot(eye, normal), 0), fresnelPower)
}
