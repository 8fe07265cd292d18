package fileutil

import (
	"os"
)

// MustGetUserHomeDir returns the current user's home directory.
// Returns an empty string if os.UserHomeDir() fails.
func MustGetUserHomeDir() string {
	hd, _ := os.UserHomeDir()
	return hd
}

// IsDir returns true if path is a directory.
func IsDir(path string) bool {
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}
	return stat.IsDir()
}

// FileExists returns true if file exists.
func FileExists(file string) bool {
	_, err := os.Stat(file)
	return !os.IsNotExist(err)
}

// TruncString returns val truncated to at most max bytes.
func TruncString(val string, max int) string {
	if len(val) > max {
		return val[:max]
	}
	return val
}
