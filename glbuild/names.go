package glbuild

import (
	"sort"
	"strconv"
)

// localNames maps the generated names of uniforms and varyings used by a program
// to names numbered in first use order, so that equal graphs compile to equal
// sources however many nodes the process created before.
type localNames struct {
	order []Node
	// index of generated names in order.
	index map[string]int
	// local names by generated name, set by assign.
	local map[string]string
}

func (ln *localNames) reset() {
	ln.order = ln.order[:0]
	if ln.index == nil {
		ln.index = make(map[string]int)
		ln.local = make(map[string]string)
	}
	clear(ln.index)
	clear(ln.local)
}

// visit records the first use of an automatically named uniform or varying.
func (ln *localNames) visit(obj ShaderObject) {
	var n Node
	switch {
	case obj.uniform != nil && obj.uniform.auto:
		n = obj.uniform
	case obj.varying != nil && obj.varying.auto:
		n = obj.varying
	default:
		return
	}
	if _, ok := ln.index[obj.Name]; ok {
		return
	}
	ln.index[obj.Name] = len(ln.order)
	ln.order = append(ln.order, n)
}

// sortDecls orders declaration names: fixed names first alphabetically,
// then generated names in first use order.
func (ln *localNames) sortDecls(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		ii, iauto := ln.index[names[i]]
		ij, jauto := ln.index[names[j]]
		switch {
		case iauto && jauto:
			return ii < ij
		case iauto != jauto:
			return jauto
		}
		return names[i] < names[j]
	})
}

// assign numbers the visited names, skipping identifiers already present in srcs.
func (ln *localNames) assign(srcs ...[]byte) {
	taken := make(map[string]bool)
	for _, src := range srcs {
		scanIdents(src, func(ident []byte) {
			if _, ok := ln.index[string(ident)]; !ok {
				taken[string(ident)] = true
			}
		})
	}
	var nu, nvy int
	for _, n := range ln.order {
		var name, generated string
		for name == "" || taken[name] {
			switch v := n.(type) {
			case *Uniform:
				nu++
				name, generated = "u"+strconv.Itoa(nu), v.name
			case *Varying:
				nvy++
				name, generated = "vy"+strconv.Itoa(nvy), v.name
			}
		}
		ln.local[generated] = name
	}
}

// name returns the local name of a generated name or name itself.
func (ln *localNames) name(generated string) string {
	if local, ok := ln.local[generated]; ok {
		return local
	}
	return generated
}

// rename returns src with every generated identifier replaced by its local name.
func (ln *localNames) rename(src []byte) []byte {
	if len(ln.local) == 0 {
		return src
	}
	dst := make([]byte, 0, len(src))
	last := 0
	scanIdentsAt(src, func(start, end int) {
		local, ok := ln.local[string(src[start:end])]
		if !ok {
			return
		}
		dst = append(dst, src[last:start]...)
		dst = append(dst, local...)
		last = end
	})
	return append(dst, src[last:]...)
}

func scanIdents(src []byte, fn func(ident []byte)) {
	scanIdentsAt(src, func(start, end int) { fn(src[start:end]) })
}

// scanIdentsAt calls fn with the bounds of every identifier in src.
// Tokens starting with a digit are numbers and skipped whole.
func scanIdentsAt(src []byte, fn func(start, end int)) {
	for i := 0; i < len(src); {
		c := src[i]
		if !identPart(c) {
			i++
			continue
		}
		j := i + 1
		for j < len(src) && identPart(src[j]) {
			j++
		}
		if !isDigit(c) {
			fn(i, j)
		}
		i = j
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func identPart(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
