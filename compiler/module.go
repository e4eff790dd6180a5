package compiler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SourceExt is the file extension of tut source files.
const SourceExt = ".tut"

// Module is one parsed source unit.
type Module struct {
	Name    string
	Path    string
	Source  string
	Stmts   []Stmt
	Imports []*Module

	resolved bool
}

// ModuleCache maps import paths to parsed modules for one compilation
// session. It also detects import cycles.
type ModuleCache struct {
	modules map[string]*Module
	loading map[string]bool
	order   []*Module
}

// NewModuleCache creates an empty module cache.
func NewModuleCache() *ModuleCache {
	return &ModuleCache{
		modules: make(map[string]*Module),
		loading: make(map[string]bool),
	}
}

// Get returns the cached module for path, if any.
func (c *ModuleCache) Get(path string) (*Module, bool) {
	m, ok := c.modules[path]
	return m, ok
}

// Len returns the number of cached modules.
func (c *ModuleCache) Len() int {
	return len(c.modules)
}

// Modules returns the cached modules in the order they finished parsing,
// which places every module after its imports.
func (c *ModuleCache) Modules() []*Module {
	return c.order
}

func (c *ModuleCache) begin(path string) error {
	if c.loading[path] {
		return fmt.Errorf("import cycle through %q", path)
	}
	c.loading[path] = true
	return nil
}

func (c *ModuleCache) finish(path string, m *Module) {
	delete(c.loading, path)
	c.modules[path] = m
	c.order = append(c.order, m)
}

func (c *ModuleCache) abort(path string) {
	delete(c.loading, path)
}

// Loader fetches module source text by import path.
type Loader interface {
	Load(path string) (string, error)
}

// ErrModuleNotFound is returned by loaders for unknown import paths.
var ErrModuleNotFound = errors.New("module not found")

// MapLoader serves modules from memory. Keys may omit the source extension.
type MapLoader map[string]string

// Load implements Loader.
func (l MapLoader) Load(path string) (string, error) {
	if src, ok := l[path]; ok {
		return src, nil
	}
	if src, ok := l[strings.TrimSuffix(path, SourceExt)]; ok {
		return src, nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrModuleNotFound)
}

// DirLoader resolves import paths against a list of directories, trying
// each in order. The builtin modules are served before the filesystem.
type DirLoader struct {
	Dirs []string
}

// Load implements Loader.
func (l DirLoader) Load(path string) (string, error) {
	if src, ok := BuiltinModules[strings.TrimSuffix(path, SourceExt)]; ok {
		return src, nil
	}
	name := path
	if filepath.Ext(name) == "" {
		name += SourceExt
	}
	if filepath.IsAbs(name) {
		data, err := os.ReadFile(name)
		if err != nil {
			return "", fmt.Errorf("loading %s: %w", path, err)
		}
		return string(data), nil
	}
	dirs := l.Dirs
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	for _, dir := range dirs {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("%s: %w", path, ErrModuleNotFound)
}

// ModuleName derives a module name from an import path.
func ModuleName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), SourceExt)
}

// BuiltinModules holds source for modules every DirLoader can import.
var BuiltinModules = map[string]string{
	"std": stdSource,
}

const stdSource = `module std;

extern printf(format: cstr, ...): void;
extern puts(s: cstr): void;
extern strlen(s: cstr): int;
extern strcat(a: cstr, b: cstr): str;
extern itos(i: int): str;
extern ftos(f: float): str;
extern sqrt(x: float): float;
`
