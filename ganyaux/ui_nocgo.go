//go:build tinygo || !cgo

package ganyaux

import (
	"errors"

	"github.com/soypat/gany"
)

// UI opens a window drawing scene until it is closed.
func UI(scene *gany.Scene, cfg UIConfig) error {
	return errors.New("require cgo for UI rendering")
}
