//go:build darwin

package disk

// Native returns the backend for the running OS.
//
//nolint:ireturn // factory returns interface by design
func Native() (Host, error) {
	return Darwin{}, nil
}
