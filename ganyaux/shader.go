package ganyaux

import (
	"fmt"
	"io"

	"github.com/soypat/gany"
)

// WriteShaders rebuilds the stale meshes of scene and writes the vertex and fragment
// sources of every mesh drawn by the scene to w.
func WriteShaders(w io.Writer, scene *gany.Scene) error {
	err := scene.Rebuild()
	if err != nil {
		return err
	}
	for i, item := range scene.AppendDrawItems(nil) {
		prog := item.Program
		_, err = fmt.Fprintf(w, "// draw %d: %s material, %d uniforms, %d attributes\n// vertex\n%s\n// fragment\n%s\n",
			i, prog.Kind, len(prog.Uniforms), len(prog.Attributes), prog.Vertex, prog.Fragment)
		if err != nil {
			return err
		}
	}
	return nil
}
