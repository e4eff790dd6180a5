package compiler

import (
	"errors"
	"fmt"

	"github.com/chazu/tut/pkg/bytecode"
	"github.com/tliron/commonlog"
)

// EntryName is the name of the function where execution starts.
const EntryName = "_main"

// Compiler drives a compilation session: it parses a root module and its
// imports into one symbol table, resolves them and emits a program.
type Compiler struct {
	Table  *SymbolTable
	Cache  *ModuleCache
	Loader Loader

	log commonlog.Logger
}

// NewCompiler creates a compiler that resolves imports through loader.
// A nil loader only serves the builtin modules.
func NewCompiler(loader Loader) *Compiler {
	return &Compiler{
		Table:  NewSymbolTable(),
		Cache:  NewModuleCache(),
		Loader: loader,
		log:    commonlog.GetLogger("tut.compiler"),
	}
}

// Load parses the module at path, loading its source through the loader.
// Modules already parsed in this session are returned from the cache.
func (c *Compiler) Load(path string) (*Module, error) {
	if m, ok := c.Cache.Get(path); ok {
		return m, nil
	}
	src, err := c.source(path)
	if err != nil {
		return nil, err
	}
	return c.parse(path, src)
}

// ParseSource parses src as the module at path.
func (c *Compiler) ParseSource(path, src string) (*Module, error) {
	if m, ok := c.Cache.Get(path); ok {
		return m, nil
	}
	return c.parse(path, src)
}

func (c *Compiler) source(path string) (string, error) {
	if c.Loader != nil {
		src, err := c.Loader.Load(path)
		if err == nil || !errors.Is(err, ErrModuleNotFound) {
			return src, err
		}
	}
	if src, ok := BuiltinModules[ModuleName(path)]; ok {
		return src, nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrModuleNotFound)
}

func (c *Compiler) parse(path, src string) (*Module, error) {
	if err := c.Cache.begin(path); err != nil {
		return nil, err
	}
	m := &Module{Name: ModuleName(path), Path: path, Source: src}
	c.log.Debugf("parsing %s", path)
	if err := NewParser(m, c.Table, c.Load).ParseModule(); err != nil {
		c.Cache.abort(path)
		return nil, err
	}
	c.Cache.finish(path, m)
	return m, nil
}

// Entry returns the entry function, or an error naming root when there is
// none.
func (c *Compiler) Entry(root *Module) (*FuncDecl, error) {
	fn := c.Table.GetFuncDecl(EntryName)
	if fn == nil || fn.Kind != FuncNormal {
		return nil, &Error{Module: root.Name, Msg: fmt.Sprintf("module '%s' has no entry function '%s'", root.Name, EntryName)}
	}
	if len(fn.Args) != 0 {
		return nil, errorAt(fn.Module.Name, fn.Pos, "entry function '%s' must not take arguments", EntryName)
	}
	return fn, nil
}

// Compile resolves every loaded module and appends the program to prog.
// prog is left as it was when compilation fails.
func (c *Compiler) Compile(root *Module, prog *bytecode.Program) error {
	entry, err := c.Entry(root)
	if err != nil {
		return err
	}

	modules := c.Cache.Modules()
	analyzer := NewSemanticAnalyzer(c.Table)
	for _, m := range modules {
		if err := analyzer.Analyze(m); err != nil {
			return err
		}
	}

	mark, codeLen := prog.Mark(), prog.CodeLen()
	if err := NewCodeGenerator(prog, c.Table, entry).Generate(modules); err != nil {
		prog.Rollback(mark)
		return err
	}
	c.log.Infof("compiled %s: %d modules, %d bytes", root.Name, len(modules), prog.CodeLen()-codeLen)
	return nil
}

// CompileFile compiles the module at path and everything it imports.
func CompileFile(path string, loader Loader) (*bytecode.Program, *SymbolTable, error) {
	c := NewCompiler(loader)
	root, err := c.Load(path)
	if err != nil {
		return nil, nil, err
	}
	prog := bytecode.NewProgram()
	if err := c.Compile(root, prog); err != nil {
		return prog, c.Table, err
	}
	return prog, c.Table, nil
}

// CompileSource compiles src as a root module named name. Imports are
// resolved through loader, which may be nil.
func CompileSource(name, src string, loader Loader) (*bytecode.Program, *SymbolTable, error) {
	c := NewCompiler(loader)
	root, err := c.ParseSource(name, src)
	if err != nil {
		return bytecode.NewProgram(), c.Table, err
	}
	prog := bytecode.NewProgram()
	if err := c.Compile(root, prog); err != nil {
		return prog, c.Table, err
	}
	return prog, c.Table, nil
}
