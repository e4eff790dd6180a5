// Package manifest handles tut.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/chazu/tut/compiler"
	"github.com/chazu/tut/vm"
)

// FileName is the name of the manifest file.
const FileName = "tut.toml"

// Manifest represents a tut.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Source  Source      `toml:"source"`
	VM      VMConfig    `toml:"vm"`
	Image   ImageConfig `toml:"image"`
	Log     LogConfig   `toml:"log"`

	// Dir is the directory containing the tut.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations.
type Source struct {
	// Entry is the root module, relative to the manifest directory.
	Entry string `toml:"entry"`
	// Dirs are searched in order when resolving imports.
	Dirs []string `toml:"dirs"`
}

// VMConfig sizes the virtual machine.
type VMConfig struct {
	StackSize int  `toml:"stack-size"`
	Globals   int  `toml:"globals"`
	MaxFrames int  `toml:"max-frames"`
	Trace     bool `toml:"trace"`
}

// ImageConfig configures image output.
type ImageConfig struct {
	Output string `toml:"output"`
}

// LogConfig configures logging. Verbosity follows commonlog: 0 is errors
// only, each step adds a level.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Load parses a tut.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// Defaults
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"."}
	}
	if m.Source.Entry == "" {
		m.Source.Entry = "main" + compiler.SourceExt
	}
	if m.Project.Name == "" {
		m.Project.Name = filepath.Base(m.Dir)
	}
	if m.VM.StackSize == 0 {
		m.VM.StackSize = vm.DefaultStackSize
	}
	if m.VM.MaxFrames == 0 {
		m.VM.MaxFrames = vm.DefaultMaxFrames
	}

	return &m, nil
}

func (m *Manifest) validate() error {
	if m.VM.StackSize < 0 || m.VM.Globals < 0 || m.VM.MaxFrames < 0 {
		return fmt.Errorf("[vm] sizes must not be negative")
	}
	if m.Log.Verbosity < 0 {
		return fmt.Errorf("[log] verbosity must not be negative")
	}
	return nil
}

// FindAndLoad walks up from startDir to find a tut.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, m.resolve(d))
	}
	return paths
}

// EntryPath returns the absolute path of the root module.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Source.Entry)
}

// ImagePath returns the absolute path images are written to. Without an
// explicit output the image is named after the project.
func (m *Manifest) ImagePath() string {
	if m.Image.Output != "" {
		return m.resolve(m.Image.Output)
	}
	return filepath.Join(m.Dir, m.Project.Name+".tutc")
}

// Loader returns an import loader over the source directories.
func (m *Manifest) Loader() compiler.DirLoader {
	return compiler.DirLoader{Dirs: m.SourceDirPaths()}
}

// Config returns the VM configuration the manifest describes.
func (m *Manifest) Config() vm.Config {
	return vm.Config{
		StackSize: m.VM.StackSize,
		Globals:   m.VM.Globals,
		MaxFrames: m.VM.MaxFrames,
		Trace:     m.VM.Trace,
	}
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
