//go:build !unix

package store

// lockFile is a no-op where flock is unavailable; FileSink still serialises
// writers within the process.
func lockFile(string) (func(), error) {
	return func() {}, nil
}
