//go:build !tinygo && cgo

package gleval

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/gany/glbuild"
	"github.com/soypat/glgl/v4.6-core/glgl"
)

// Init1x1GLFW starts a 1x1 sized GLFW window so that user can start working with the GPU.
// It returns a termination function that should be called when user is done running loads on GPU.
func Init1x1GLFW() (terminate func(), err error) {
	_, terminate, err = glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:   "compute",
		Version: [2]int{4, 6},
		Width:   1,
		Height:  1,
	})
	return terminate, err
}

// GPUEvaluator evaluates node graphs for every vertex of a [VertexSource] with
// compute shaders. It requires a current OpenGL 4.3+ context, see [Init1x1GLFW].
type GPUEvaluator struct {
	src      VertexSource
	cfg      Config
	invocX   int
	prog     *glbuild.Programmer
	programs map[glbuild.Node]gpuProgram
}

type gpuProgram struct {
	cp   *glbuild.ComputeProgram
	prog glgl.Program
}

// NewGPUEvaluator returns a compute shader evaluator over the vertices of src.
// invocX is the work group size; zero selects a default.
func NewGPUEvaluator(src VertexSource, cfg Config, invocX int) (*GPUEvaluator, error) {
	cpu, err := NewEvaluator(src, cfg)
	if err != nil {
		return nil, err
	}
	if invocX <= 0 {
		invocX = defaultInvocX
	}
	return &GPUEvaluator{
		src:      src,
		cfg:      cpu.cfg,
		invocX:   invocX,
		prog:     glbuild.NewDefaultProgrammer(),
		programs: make(map[glbuild.Node]gpuProgram),
	}, nil
}

// Evaluate evaluates root for every vertex and stores the tightly packed results in dst,
// which must be of length NumVertices times the components of root's type.
// Programs are compiled once per root node so structural edits to a graph
// already evaluated require a new evaluator.
func (e *GPUEvaluator) Evaluate(root glbuild.Node, dst []float32) error {
	p, err := e.program(root)
	if err != nil {
		return err
	}
	nv := e.src.NumVertices()
	ncomp := p.cp.Result.Components()
	if len(dst) != nv*ncomp {
		return fmt.Errorf("want %d results buffer, got %d", nv*ncomp, len(dst))
	}
	p.prog.Bind()
	defer p.prog.Unbind()
	err = e.setUniforms(p)
	if err != nil {
		return err
	}

	ssbos := make([]uint32, len(p.cp.Attributes))
	defer func() {
		for i := range ssbos {
			if ssbos[i] != 0 {
				gl.DeleteBuffers(1, &ssbos[i])
			}
		}
	}()
	for i, attr := range p.cp.Attributes {
		data, n, ok := e.src.Attribute(attr.Name)
		if !ok {
			return fmt.Errorf("attribute %q not found", attr.Name)
		} else if n != attr.Type.Components() {
			return fmt.Errorf("attribute %q has %d components, want %s", attr.Name, n, attr.Type)
		} else if len(data) < nv*n {
			return fmt.Errorf("attribute %q too short for %d vertices", attr.Name, nv)
		}
		ssbos[i] = loadSSBO(data[:nv*n], uint32(i), gl.STATIC_DRAW)
		if ssbos[i] == 0 {
			return glErrOrMessage("zero SSBO id set by GL during attribute loading")
		}
	}
	resultSSBO := createSSBO(elemSize[float32]()*len(dst), uint32(p.cp.ResultBinding), gl.DYNAMIC_READ)
	if resultSSBO == 0 {
		return glErrOrMessage("zero id SSBO creating result buffer")
	}
	defer gl.DeleteBuffers(1, &resultSSBO)
	nWorkX := (nv + p.cp.InvocX - 1) / p.cp.InvocX
	gl.DispatchCompute(uint32(nWorkX), 1, 1)
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)
	err = copySSBO(dst, resultSSBO)
	if err != nil {
		return err
	}
	return glgl.Err()
}

func (e *GPUEvaluator) program(root glbuild.Node) (gpuProgram, error) {
	if p, ok := e.programs[root]; ok {
		return p, nil
	}
	cp, err := e.prog.CompileCompute(root, e.invocX)
	if err != nil {
		return gpuProgram{}, err
	}
	prog, err := glgl.CompileProgram(glgl.ShaderSource{Compute: string(cp.Source) + "\x00"})
	if err != nil {
		return gpuProgram{}, errors.New(string(cp.Source) + "\n" + err.Error())
	}
	p := gpuProgram{cp: cp, prog: prog}
	e.programs[root] = p
	return p, nil
}

func (e *GPUEvaluator) setUniforms(p gpuProgram) error {
	if loc, err := p.prog.UniformLocation(glbuild.NumVerticesUniform + "\x00"); err == nil {
		gl.Uniform1ui(loc, uint32(e.src.NumVertices()))
	}
	modelView := e.cfg.View.Mul4(e.cfg.Model)
	normal := modelView.Mat3().Inv().Transpose()
	mats := map[string]mgl32.Mat4{
		"modelMatrix":      e.cfg.Model,
		"viewMatrix":       e.cfg.View,
		"projectionMatrix": e.cfg.Projection,
		"modelViewMatrix":  modelView,
	}
	for name, m := range mats {
		// Unused builtins are optimized out.
		if loc, err := p.prog.UniformLocation(name + "\x00"); err == nil {
			gl.UniformMatrix4fv(loc, 1, false, &m[0])
		}
	}
	if loc, err := p.prog.UniformLocation("normalMatrix\x00"); err == nil {
		gl.UniformMatrix3fv(loc, 1, false, &normal[0])
	}
	if loc, err := p.prog.UniformLocation("cameraPosition\x00"); err == nil {
		gl.Uniform3f(loc, e.cfg.Camera.X, e.cfg.Camera.Y, e.cfg.Camera.Z)
	}
	for _, u := range p.cp.Uniforms {
		name := p.cp.UniformName(u)
		loc, err := p.prog.UniformLocation(name + "\x00")
		if err != nil {
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
		default:
			return fmt.Errorf("uniform %s: unsupported type %s", name, v.Type)
		}
	}
	return glgl.Err()
}

// Delete releases the compiled programs.
func (e *GPUEvaluator) Delete() {
	for root, p := range e.programs {
		p.prog.Delete()
		delete(e.programs, root)
	}
}

func loadSSBO[T any](slice []T, base, usage uint32) (ssbo uint32) {
	var p runtime.Pinner
	p.Pin(&ssbo)
	gl.GenBuffers(1, &ssbo)
	p.Unpin()
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	size := len(slice) * elemSize[T]()
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, size, unsafe.Pointer(&slice[0]), usage)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, base, ssbo)
	return ssbo
}

func createSSBO(size int, base, usage uint32) (ssbo uint32) {
	gl.GenBuffers(1, &ssbo)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, size, nil, usage)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, base, ssbo)
	return ssbo
}

func copySSBO[T any](dst []T, ssbo uint32) error {
	bufSize := elemSize[T]() * len(dst)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	ptr := gl.MapBufferRange(gl.SHADER_STORAGE_BUFFER, 0, bufSize, gl.MAP_READ_BIT)
	if ptr == nil {
		return glErrOrMessage("failed to map SSBO buffer during copy")
	}
	defer gl.UnmapBuffer(gl.SHADER_STORAGE_BUFFER)
	gpuBytes := unsafe.Slice((*byte)(ptr), bufSize)
	bufBytes := unsafe.Slice((*byte)(unsafe.Pointer(&dst[0])), bufSize)
	copy(bufBytes, gpuBytes)
	return nil
}

func elemSize[T any]() int {
	var z T
	return int(unsafe.Sizeof(z))
}

func glErrOrMessage(defaultMsg string) (err error) {
	err = glgl.Err()
	if err == nil {
		err = errors.New(defaultMsg)
	} else {
		err = fmt.Errorf("%s: %w", defaultMsg, err)
	}
	return err
}
