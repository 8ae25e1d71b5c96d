//go:build !accel

package session

// hasAcceleratorBuild reports whether this binary was compiled with
// accelerator support ('accel' build tag).
func hasAcceleratorBuild() bool { return false }
