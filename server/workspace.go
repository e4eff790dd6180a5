package server

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/tut/compiler"
	"github.com/chazu/tut/pkg/bytecode"
)

// Analysis is the result of checking one open document.
type Analysis struct {
	URI    string
	Path   string
	Module *compiler.Module
	Table  *compiler.SymbolTable
	// Err is the first diagnostic, nil when the document is clean.
	Err error
}

// Workspace holds the analyses of every open document.
type Workspace struct {
	// Loader resolves imports. When nil, imports are searched for next to
	// the document.
	Loader compiler.Loader

	docs map[string]*Analysis
	log  commonlog.Logger
}

// NewWorkspace creates an empty workspace.
func NewWorkspace(loader compiler.Loader) *Workspace {
	return &Workspace{
		Loader: loader,
		docs:   make(map[string]*Analysis),
		log:    commonlog.GetLogger("tut.server"),
	}
}

// Analyze parses and checks text as the document at uri and records the
// result. Documents without an entry function are checked as libraries.
func (w *Workspace) Analyze(uri, text string) *Analysis {
	path := uriPath(uri)
	loader := w.Loader
	if loader == nil {
		loader = compiler.DirLoader{Dirs: []string{filepath.Dir(path)}}
	}

	a := &Analysis{URI: uri, Path: path}
	c := compiler.NewCompiler(loader)
	a.Table = c.Table
	w.docs[uri] = a

	root, err := c.ParseSource(path, text)
	if err != nil {
		a.Err = err
		return a
	}
	a.Module = root

	analyzer := compiler.NewSemanticAnalyzer(c.Table)
	for _, m := range c.Cache.Modules() {
		if err := analyzer.Analyze(m); err != nil {
			a.Err = err
			return a
		}
	}
	if _, err := c.Entry(root); err == nil {
		a.Err = c.Compile(root, bytecode.NewProgram())
	}
	if a.Err != nil {
		w.log.Debugf("%s: %s", path, a.Err)
	}
	return a
}

// Get returns the latest analysis of uri, or nil.
func (w *Workspace) Get(uri string) *Analysis {
	return w.docs[uri]
}

// Forget drops the analysis of a closed document.
func (w *Workspace) Forget(uri string) {
	delete(w.docs, uri)
}

// Diagnostic is a compile error placed in its document. Line and Column
// are 0-based.
type Diagnostic struct {
	Line    int
	Column  int
	Message string
}

// Diagnostics returns the diagnostics of the analysis. Errors raised in an
// imported module are reported at the top of the document.
func (a *Analysis) Diagnostics() []Diagnostic {
	if a.Err == nil {
		return nil
	}
	var cerr *compiler.Error
	if !errors.As(a.Err, &cerr) {
		return []Diagnostic{{Message: a.Err.Error()}}
	}
	name := compiler.ModuleName(a.Path)
	if a.Module != nil {
		name = a.Module.Name
	}
	if cerr.Module != "" && cerr.Module != name {
		return []Diagnostic{{Message: cerr.Error()}}
	}
	d := Diagnostic{Message: cerr.Msg}
	if cerr.Pos.Line > 0 {
		d.Line = cerr.Pos.Line - 1
	}
	if cerr.Pos.Column > 0 {
		d.Column = cerr.Pos.Column - 1
	}
	return []Diagnostic{d}
}

// Symbol is a declaration visible at module level.
type Symbol struct {
	Name   string
	Kind   SymbolKind
	Detail string
	Pos    compiler.Position
	// Local is set when the declaration belongs to the analyzed document.
	Local bool
}

// SymbolKind classifies a Symbol.
type SymbolKind uint8

const (
	SymbolVariable SymbolKind = iota
	SymbolFunction
	SymbolExtern
	SymbolType
)

// Lookup finds the module-level declaration named name.
func (a *Analysis) Lookup(name string) (Symbol, bool) {
	if a.Table == nil {
		return Symbol{}, false
	}
	if fn := a.Table.GetFuncDecl(name); fn != nil {
		return a.funcSymbol(fn), true
	}
	if v := a.Table.GetVarDecl(name, 0); v != nil {
		return Symbol{
			Name:   v.Name,
			Kind:   SymbolVariable,
			Detail: fmt.Sprintf("var %s: %s", v.Name, v.Type),
			Pos:    v.Pos,
		}, true
	}
	if t := a.Table.GetType(name); t != nil {
		return Symbol{Name: t.Name, Kind: SymbolType, Detail: describeType(t), Pos: t.Pos}, true
	}
	// nested functions are only visible inside their parent, but are
	// still worth describing
	for _, fn := range a.Table.AllFunctions() {
		if fn.Name == name {
			return a.funcSymbol(fn), true
		}
	}
	return Symbol{}, false
}

// Symbols returns every module-level declaration sorted by name.
func (a *Analysis) Symbols() []Symbol {
	if a.Table == nil {
		return nil
	}
	var syms []Symbol
	for _, fn := range a.Table.Functions() {
		syms = append(syms, a.funcSymbol(fn))
	}
	for _, v := range a.Table.Globals() {
		syms = append(syms, Symbol{
			Name:   v.Name,
			Kind:   SymbolVariable,
			Detail: fmt.Sprintf("var %s: %s", v.Name, v.Type),
			Pos:    v.Pos,
		})
	}
	for _, t := range a.Table.Types() {
		syms = append(syms, Symbol{Name: t.Name, Kind: SymbolType, Detail: describeType(t), Pos: t.Pos})
	}
	sort.SliceStable(syms, func(i, j int) bool { return syms[i].Name < syms[j].Name })
	return syms
}

func (a *Analysis) funcSymbol(fn *compiler.FuncDecl) Symbol {
	kind, keyword := SymbolFunction, "func"
	if fn.Kind == compiler.FuncExtern {
		kind, keyword = SymbolExtern, "extern"
	}
	args := make([]string, 0, len(fn.Args)+1)
	for _, arg := range fn.Args {
		args = append(args, fmt.Sprintf("%s: %s", arg.Name, arg.Type))
	}
	if fn.Varargs {
		args = append(args, "...")
	}
	return Symbol{
		Name:   fn.Name,
		Kind:   kind,
		Detail: fmt.Sprintf("%s %s(%s): %s", keyword, fn.Name, strings.Join(args, ", "), fn.Ret),
		Pos:    fn.Pos,
		Local:  fn.Module != nil && fn.Module == a.Module,
	}
}

func describeType(t *compiler.Type) string {
	if !t.Defined {
		return "struct " + t.Name
	}
	members := make([]string, len(t.Members))
	for i, m := range t.Members {
		members[i] = fmt.Sprintf("%s: %s", m.Name, m.Type)
	}
	return fmt.Sprintf("struct %s { %s }", t.Name, strings.Join(members, "; "))
}

// uriPath converts a file URI to a filesystem path. Other URIs are used
// as-is.
func uriPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	return filepath.FromSlash(u.Path)
}
