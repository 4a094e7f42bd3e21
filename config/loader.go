package config

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix marks environment variables that override configuration keys.
const EnvPrefix = "RECFLOW_"

// FileNames are the workspace file names searched for in a directory, in order.
var FileNames = []string{"workspace.toml", "workspace.yaml", "workspace.yml"}

// FileSystem is what the loader needs from the disk. Tests swap it out.
type FileSystem interface {
	Exists(path string) bool
	IsDir(path string) bool
	LoadEnv(path string) error
}

// OSFileSystem is the FileSystem backed by the os package.
type OSFileSystem struct{}

func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSFileSystem) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// LoadEnv loads path into the process environment. Variables already set
// are kept.
func (OSFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Resolver locates the workspace file and its .env file.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles finds the workspace file for path, which may be the file
// itself or its directory, and the .env file beside it.
func (r *Resolver) ResolveFiles(path string, opts LoaderConfig) (ResolvedFiles, error) {
	configFile, err := r.configFile(path)
	if err != nil {
		return ResolvedFiles{}, err
	}
	files := ResolvedFiles{ConfigFile: configFile, EnvFile: opts.EnvFile}
	if files.EnvFile == "" {
		if env := filepath.Join(filepath.Dir(configFile), ".env"); r.FileSystem.Exists(env) {
			files.EnvFile = env
		}
	}
	return files, nil
}

func (r *Resolver) configFile(path string) (string, error) {
	if !r.FileSystem.IsDir(path) {
		if r.FileSystem.Exists(path) {
			return path, nil
		}
		return "", fmt.Errorf("workspace config %s not found", path)
	}
	for _, name := range FileNames {
		if candidate := filepath.Join(path, name); r.FileSystem.Exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no %s in %s", strings.Join(FileNames, ", "), path)
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	EnvFile    string // used instead of the .env beside the workspace file
}

// LoaderOption is a functional option for LoadWorkspace.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// readFiles decodes files into cfg. The .env file is loaded first so its
// variables join the RECFLOW_* overrides.
func readFiles(cfg any, files ResolvedFiles, fs FileSystem) error {
	v := viper.New()
	v.SetConfigFile(files.ConfigFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading %s: %w", files.ConfigFile, err)
	}

	if files.EnvFile != "" && fs.Exists(files.EnvFile) {
		if err := fs.LoadEnv(files.EnvFile); err != nil {
			return fmt.Errorf("loading %s: %w", files.EnvFile, err)
		}
	}
	applyEnv(v, os.Environ(), envKeys(reflect.TypeOf(cfg)))

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decoding %s: %w", files.ConfigFile, err)
	}
	return nil
}

// applyEnv copies every variable of environ named in keys onto its
// configuration key.
func applyEnv(v *viper.Viper, environ []string, keys map[string]string) {
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if key, known := keys[name]; known {
			v.Set(key, value)
		}
	}
}

// envKeys maps the environment variable of each scalar key of t to the key:
// run.max_parallel is overridden by RECFLOW_RUN_MAX_PARALLEL.
func envKeys(t reflect.Type) map[string]string {
	keys := structKeys(t, "")
	out := make(map[string]string, len(keys))
	for key := range keys {
		out[EnvName(key)] = key
	}
	return out
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// structKeys lists the dotted mapstructure keys of the scalar fields of t.
// Durations count as scalars.
func structKeys(t reflect.Type, prefix string) map[string]bool {
	keys := make(map[string]bool)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return keys
	}
	for f := range fields(t) {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		key := prefix + name
		switch kind := f.Type.Kind(); {
		case kind == reflect.String, kind >= reflect.Bool && kind <= reflect.Float64:
			keys[key] = true
		case kind == reflect.Struct:
			for k := range structKeys(f.Type, key+".") {
				keys[k] = true
			}
		}
	}
	return keys
}

func fields(t reflect.Type) iter.Seq[reflect.StructField] {
	return func(yield func(reflect.StructField) bool) {
		for i := range t.NumField() {
			if f := t.Field(i); f.IsExported() && !yield(f) {
				return
			}
		}
	}
}
