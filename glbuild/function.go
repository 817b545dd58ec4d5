package glbuild

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

// Param is a declared parameter of a GLSL function.
type Param struct {
	Name string
	Type Type
}

// CPUEnv provides services to CPU implementations of shader functions.
type CPUEnv interface {
	// Sample reads a texture at normalized coordinates.
	Sample(s Sampler, coord [3]float32) [4]float32
}

// CPUFunc is a CPU implementation of a shader function used to evaluate node graphs without a GPU.
type CPUFunc func(env CPUEnv, args []Value) (Value, error)

type keyword struct {
	name string
	node Node
}

// FuncDef is a named GLSL function definition. Its body may reference free
// identifiers, keywords, which are bound per definition to a [Varying] or a
// [Uniform] with [FuncDef.SetKeyword]. Calls reference the definition by
// identity so it is written once per program however many calls use it.
type FuncDef struct {
	name     string
	ret      Type
	params   []Param
	src      []byte
	keywords []keyword
	deps     []*FuncDef
	cpu      CPUFunc
}

// NewFuncDef parses a single GLSL function definition of the form
//
//	vec3 name(sampler2D tex, float a){ ... }
func NewFuncDef(src []byte) (*FuncDef, error) {
	src = bytes.TrimSpace(src)
	fnNameEnd := bytes.IndexByte(src, '(')
	if fnNameEnd < 0 {
		return nil, errors.New("unable to parse function name")
	}
	header := bytes.Fields(src[:fnNameEnd])
	if len(header) < 2 {
		return nil, errors.New("unable to parse function return type and name")
	}
	name := string(header[len(header)-1])
	if !isIdent(name) {
		return nil, fmt.Errorf("invalid function name %q", name)
	}
	ret, err := ParseType(header[len(header)-2])
	if err != nil {
		return nil, fmt.Errorf("function %s return type: %w", name, err)
	}
	paramsEnd := bytes.IndexByte(src[fnNameEnd:], ')')
	if paramsEnd < 0 {
		return nil, fmt.Errorf("function %s: unterminated parameter list", name)
	}
	paramsEnd += fnNameEnd
	if bytes.IndexByte(src[paramsEnd:], '{') < 0 || src[len(src)-1] != '}' {
		return nil, fmt.Errorf("function %s: missing body", name)
	}
	def := &FuncDef{
		name: name,
		ret:  ret,
		src:  append([]byte(nil), src...),
	}
	paramList := bytes.TrimSpace(src[fnNameEnd+1 : paramsEnd])
	if len(paramList) == 0 || string(paramList) == "void" {
		return def, nil
	}
	for _, p := range bytes.Split(paramList, []byte{','}) {
		fields := bytes.Fields(p)
		// Skip parameter qualifiers.
		for len(fields) > 2 {
			fields = fields[1:]
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("function %s: unable to parse parameter %q", name, bytes.TrimSpace(p))
		}
		pt, err := ParseType(fields[0])
		if err != nil {
			return nil, fmt.Errorf("function %s parameter: %w", name, err)
		} else if pt == TypeVoid {
			return nil, fmt.Errorf("function %s: void parameter", name)
		}
		def.params = append(def.params, Param{Name: string(fields[1]), Type: pt})
	}
	return def, nil
}

// MustFuncDef is like [NewFuncDef] but panics on error. For use with embedded sources.
func MustFuncDef(src []byte) *FuncDef {
	def, err := NewFuncDef(src)
	if err != nil {
		panic(err)
	}
	return def
}

func (f *FuncDef) Name() string { return f.name }

func (f *FuncDef) ReturnType() Type { return f.ret }

// Params returns the declared parameters of the function.
func (f *FuncDef) Params() []Param { return f.params }

// SetKeyword binds identifier name used in the function body to a varying or uniform.
// The binding is written as a preprocessor define around the definition.
func (f *FuncDef) SetKeyword(name string, n Node) error {
	switch n.(type) {
	case *Varying, *Uniform:
	default:
		return fmt.Errorf("keyword %q of %s must bind a varying or uniform, got %T", name, f.name, n)
	}
	if !isIdent(name) {
		return fmt.Errorf("invalid keyword %q", name)
	}
	body := f.src[bytes.IndexByte(f.src, '{'):]
	if !bytes.Contains(body, []byte(name)) {
		return fmt.Errorf("keyword %q not found in %s body", name, f.name)
	}
	for i := range f.keywords {
		if f.keywords[i].name == name {
			f.keywords[i].node = n
			return nil
		}
	}
	f.keywords = append(f.keywords, keyword{name: name, node: n})
	sort.Slice(f.keywords, func(i, j int) bool { return f.keywords[i].name < f.keywords[j].name })
	return nil
}

// Keyword returns the node bound to keyword name or nil.
func (f *FuncDef) Keyword(name string) Node {
	for _, kw := range f.keywords {
		if kw.name == name {
			return kw.node
		}
	}
	return nil
}

// Require declares functions that must be written before this one.
func (f *FuncDef) Require(deps ...*FuncDef) {
	f.deps = append(f.deps, deps...)
}

// SetCPU sets the CPU implementation of the function.
func (f *FuncDef) SetCPU(fn CPUFunc) { f.cpu = fn }

// CPU returns the CPU implementation of the function or nil.
func (f *FuncDef) CPU() CPUFunc { return f.cpu }

// AppendSource appends the function definition wrapped in its keyword defines.
func (f *FuncDef) AppendSource(b []byte) []byte {
	var scratch []byte
	for _, kw := range f.keywords {
		scratch = kw.node.AppendExpr(scratch[:0], StageVertex)
		if string(scratch) == kw.name {
			continue
		}
		b = AppendDefineDecl(b, kw.name, string(scratch))
	}
	b = append(b, f.src...)
	b = append(b, '\n')
	for _, kw := range f.keywords {
		scratch = kw.node.AppendExpr(scratch[:0], StageVertex)
		if string(scratch) == kw.name {
			continue
		}
		b = AppendUndefineDecl(b, kw.name)
	}
	return b
}

func (f *FuncDef) appendKeywordObjects(objs []ShaderObject) []ShaderObject {
	for _, kw := range f.keywords {
		objs = kw.node.AppendShaderObjects(objs)
	}
	return objs
}

// Call is a call to a function definition. Argument count and types are checked
// against the definition's parameters.
type Call struct {
	def  *FuncDef
	args []Node
}

// NewCall binds def to args. Returns [ErrArgCount] or [ErrArgType] wrapped on mismatch.
func NewCall(def *FuncDef, args ...Node) (*Call, error) {
	if def == nil {
		return nil, errors.New("nil function definition")
	}
	err := validateArgs(def, args)
	if err != nil {
		return nil, err
	}
	return &Call{def: def, args: append([]Node(nil), args...)}, nil
}

func validateArgs(def *FuncDef, args []Node) error {
	if len(args) != len(def.params) {
		return fmt.Errorf("%s: want %d arguments, got %d: %w", def.name, len(def.params), len(args), ErrArgCount)
	}
	for i, arg := range args {
		if arg == nil {
			return fmt.Errorf("%s: nil argument %q", def.name, def.params[i].Name)
		}
		if arg.Type() != def.params[i].Type {
			return fmt.Errorf("%s: argument %q want %s, got %s: %w", def.name, def.params[i].Name, def.params[i].Type, arg.Type(), ErrArgType)
		}
	}
	return nil
}

func (c *Call) Def() *FuncDef { return c.def }

// Args returns the call arguments. The returned slice must not be modified.
func (c *Call) Args() []Node { return c.args }

// SetArgs replaces the call arguments. This is a structural change.
func (c *Call) SetArgs(args ...Node) error {
	return c.SetFunction(c.def, args...)
}

// SetFunction replaces the called function and its arguments. The new function
// must return the same type as the current one. This is a structural change.
func (c *Call) SetFunction(def *FuncDef, args ...Node) error {
	if def == nil {
		return errors.New("nil function definition")
	} else if def.ret != c.def.ret {
		return fmt.Errorf("replace %s call returning %s with %s returning %s: %w", c.def.name, c.def.ret, def.name, def.ret, ErrTypeMismatch)
	}
	err := validateArgs(def, args)
	if err != nil {
		return err
	}
	for _, arg := range args {
		if reaches(arg, c) {
			return ErrCycle
		}
	}
	c.def = def
	c.args = append(c.args[:0:0], args...)
	return nil
}

func (c *Call) Type() Type { return c.def.ret }

func (c *Call) AppendExpr(b []byte, st Stage) []byte {
	b = append(b, c.def.name...)
	b = append(b, '(')
	for i, arg := range c.args {
		if i > 0 {
			b = append(b, ',')
		}
		b = arg.AppendExpr(b, st)
	}
	return append(b, ')')
}

func (c *Call) ForEachChild(userData any, fn func(userData any, n *Node) error) error {
	for i := range c.args {
		err := fn(userData, &c.args[i])
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Call) AppendShaderObjects(objs []ShaderObject) []ShaderObject {
	return append(objs, ShaderObject{Kind: ObjFunction, Name: c.def.name, Type: c.def.ret, fn: c.def})
}
