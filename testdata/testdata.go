// Package testdata provides access to the sample configuration for tests and benchmarks
package testdata

import (
	"path/filepath"
	"runtime"
)

var absoluteDirPath string

func init() {
	_, thisFile, _, _ := runtime.Caller(0)
	absoluteDirPath = filepath.Dir(thisFile)
}

// GetConfigPath returns the path of config_sample.yml
func GetConfigPath() string {
	return filepath.Join(absoluteDirPath, "config_sample.yml")
}
