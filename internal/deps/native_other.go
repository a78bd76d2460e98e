//go:build !darwin && !linux

package deps

// NativeManagers returns the package managers to try on this OS, in order.
func NativeManagers() []Manager {
	return nil
}
