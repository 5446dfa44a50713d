// Package config loads the host's own bootstrap settings (Bootstrap)
// from an environment-profiled viper stack: CreateConfig merges a base
// file, its .local override, a profile-suffixed file
// (config.production.yaml) and that file's .local override, each later
// file overriding the earlier ones; Bind/BindWithDefaults unmarshal the
// merged result.
package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Validator is implemented by a config target (Bootstrap, a plug-in's
// own section) that wants its fields checked after Bind.
type Validator interface {
	Validate() error
}

// ConfigInterface is the surface *Config exposes, kept separate so test
// doubles can stand in for it.
type ConfigInterface interface {
	Bind(instance any) error
	Validate() error
	Export(path string) error
	Snapshot() (map[string]any, error)
	Restore() error
}

// Config wraps a viper instance assembled from one or more
// environment-profiled files (CreateConfig), plus a snapshot for
// Restore and an optional file watch for hot-reload.
type Config struct {
	instance   *viper.Viper
	opts       ConfigOptions
	watchOnce  sync.Once
	watchMutex sync.RWMutex
	snapshot   map[string]any
}

// ConfigOptions controls how Config locates and merges its source
// files. BasePath/FileName/FileType name the primary file; LoadAll
// additionally merges every other profile file found in BasePath.
type ConfigOptions struct {
	BasePath  string
	FileName  string
	FileType  string
	EnvPrefix string
	WatchAble bool
	OnChange  func(e fsnotify.Event)
	LoadAll   bool
}
