package utils

import "os"

// Exists reports whether path exists on disk and, if so, whether it is
// a directory. Used by the config loader to skip profile files that
// were never written for the current environment.
func Exists(path string) (isDir bool, exists bool, err error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return info.IsDir(), true, nil
}
