//go:build darwin

package deps

// NativeManagers returns the package managers to try on this OS, in order.
func NativeManagers() []Manager {
	return []Manager{Homebrew()}
}
