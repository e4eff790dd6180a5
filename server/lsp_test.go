package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/tut/compiler"
)

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"simple word", "return fact", protocol.Position{Line: 0, Character: 11}, "fact"},
		{"at start", "fa", protocol.Position{Line: 0, Character: 2}, "fa"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "first line\nsecond line\nstr", protocol.Position{Line: 2, Character: 3}, "str"},
		{"after operator", "x = a+cou", protocol.Position{Line: 0, Character: 9}, "cou"},
		{"underscore", "_ma", protocol.Position{Line: 0, Character: 3}, "_ma"},
		{"cursor at beginning", "hello", protocol.Position{Line: 0, Character: 0}, ""},
		{"line beyond document", "single line", protocol.Position{Line: 5, Character: 0}, ""},
		{"column beyond line", "abc", protocol.Position{Line: 0, Character: 40}, "abc"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractPrefix(tc.text, tc.pos); got != tc.want {
				t.Errorf("extractPrefix = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"inside word", "hello world", protocol.Position{Line: 0, Character: 3}, "hello"},
		{"at end of word", "hello world", protocol.Position{Line: 0, Character: 5}, "hello"},
		{"second word", "hello world", protocol.Position{Line: 0, Character: 8}, "world"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "first\nfact(3)", protocol.Position{Line: 1, Character: 2}, "fact"},
		{"member access", "p.x_pos", protocol.Position{Line: 0, Character: 4}, "x_pos"},
		{"between symbols", "a + b", protocol.Position{Line: 0, Character: 2}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractWord(tc.text, tc.pos); got != tc.want {
				t.Errorf("extractWord = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestToProtocolPosition(t *testing.T) {
	got := toProtocolPosition(compiler.Position{Line: 3, Column: 7})
	if got.Line != 2 || got.Character != 6 {
		t.Errorf("toProtocolPosition = %+v, want 2:6", got)
	}
	got = toProtocolPosition(compiler.Position{})
	if got.Line != 0 || got.Character != 0 {
		t.Errorf("zero position = %+v, want 0:0", got)
	}
}

// ---------------------------------------------------------------------------
// Workspace analysis
// ---------------------------------------------------------------------------

const sampleDoc = `struct Point { x: int; y: int }
var origin: Point
func dist(p: Point): int {
	return p.x + p.y
}
func _main(): int {
	return dist(origin)
}
`

func TestAnalyzeCleanDocument(t *testing.T) {
	ws := NewWorkspace(compiler.MapLoader{})
	a := ws.Analyze("file:///tmp/sample.tut", sampleDoc)
	if a.Err != nil {
		t.Fatalf("unexpected error: %v", a.Err)
	}
	if a.Path != "/tmp/sample.tut" {
		t.Errorf("Path = %q", a.Path)
	}
	if len(a.Diagnostics()) != 0 {
		t.Errorf("Diagnostics() = %v, want none", a.Diagnostics())
	}
	if ws.Get("file:///tmp/sample.tut") != a {
		t.Error("Get should return the latest analysis")
	}
	ws.Forget("file:///tmp/sample.tut")
	if ws.Get("file:///tmp/sample.tut") != nil {
		t.Error("Forget should drop the analysis")
	}
}

func TestAnalyzeLibraryWithoutEntry(t *testing.T) {
	ws := NewWorkspace(compiler.MapLoader{})
	a := ws.Analyze("file:///tmp/lib.tut", "func twice(x: int): int { return x * 2 }\n")
	if a.Err != nil {
		t.Errorf("a library should not need an entry function: %v", a.Err)
	}
}

func TestAnalyzeDiagnostics(t *testing.T) {
	ws := NewWorkspace(compiler.MapLoader{})
	a := ws.Analyze("file:///tmp/bad.tut", "func _main(): int {\n\treturn missing\n}\n")
	diags := a.Diagnostics()
	if len(diags) != 1 {
		t.Fatalf("Diagnostics() = %v, want one", diags)
	}
	d := diags[0]
	if d.Line != 1 || d.Column != 8 {
		t.Errorf("diagnostic at %d:%d, want 1:8", d.Line, d.Column)
	}
	if !strings.Contains(d.Message, "undeclared identifier") {
		t.Errorf("message = %q", d.Message)
	}
}

func TestAnalyzeImportedModuleError(t *testing.T) {
	ws := NewWorkspace(compiler.MapLoader{
		"util": "func broken(): int { return true }\n",
	})
	a := ws.Analyze("file:///tmp/app.tut", "import \"util\"\nfunc _main(): int { return broken() }\n")
	diags := a.Diagnostics()
	if len(diags) != 1 {
		t.Fatalf("Diagnostics() = %v, want one", diags)
	}
	if diags[0].Line != 0 || diags[0].Column != 0 {
		t.Errorf("imported error placed at %d:%d, want the top of the document", diags[0].Line, diags[0].Column)
	}
	if !strings.HasPrefix(diags[0].Message, "util:") {
		t.Errorf("message = %q, want it to name the module", diags[0].Message)
	}
}

func TestLookupAndHover(t *testing.T) {
	ws := NewWorkspace(compiler.MapLoader{})
	a := ws.Analyze("file:///tmp/sample.tut", "import \"std\"\n"+sampleDoc)

	tests := []struct {
		word   string
		kind   SymbolKind
		detail string
		local  bool
	}{
		{"dist", SymbolFunction, "func dist(p: Point): int", true},
		{"origin", SymbolVariable, "var origin: Point", false},
		{"Point", SymbolType, "struct Point { x: int; y: int }", false},
		{"strlen", SymbolExtern, "extern strlen(s: cstr): int", false},
		{"printf", SymbolExtern, "extern printf(format: cstr, ...): void", false},
	}
	for _, tc := range tests {
		sym, ok := a.Lookup(tc.word)
		if !ok {
			t.Errorf("Lookup(%q) failed", tc.word)
			continue
		}
		if sym.Kind != tc.kind || sym.Detail != tc.detail || sym.Local != tc.local {
			t.Errorf("Lookup(%q) = %+v", tc.word, sym)
		}
	}

	if _, ok := a.Lookup("nothing"); ok {
		t.Error("Lookup of an unknown name should fail")
	}

	h := hover(a, "dist")
	if h == nil {
		t.Fatal("hover(dist) = nil")
	}
	content := h.Contents.(protocol.MarkupContent)
	if !strings.Contains(content.Value, "func dist(p: Point): int") {
		t.Errorf("hover = %q", content.Value)
	}
	if hover(a, "nothing") != nil {
		t.Error("hover of an unknown name should be nil")
	}
}

func TestComplete(t *testing.T) {
	ws := NewWorkspace(compiler.MapLoader{})
	a := ws.Analyze("file:///tmp/sample.tut", sampleDoc)

	labels := func(items []protocol.CompletionItem) []string {
		var out []string
		for _, it := range items {
			out = append(out, it.Label)
		}
		return out
	}

	got := labels(complete(a, "di"))
	if len(got) != 1 || got[0] != "dist" {
		t.Errorf("complete(di) = %v, want [dist]", got)
	}

	got = labels(complete(a, "ret"))
	if len(got) != 1 || got[0] != "return" {
		t.Errorf("complete(ret) = %v, want [return]", got)
	}

	// keywords are still offered without an analysis
	if len(complete(nil, "whi")) != 1 {
		t.Errorf("complete(nil, whi) = %v", labels(complete(nil, "whi")))
	}
}

func TestURIPath(t *testing.T) {
	if got := uriPath("file:///home/me/my%20proj/a.tut"); got != "/home/me/my proj/a.tut" {
		t.Errorf("uriPath = %q", got)
	}
	if got := uriPath("untitled:Untitled-1"); got != "untitled:Untitled-1" {
		t.Errorf("uriPath = %q", got)
	}
}

func TestWorkerSerializesAndRecovers(t *testing.T) {
	w := NewWorker(NewWorkspace(nil))
	defer w.Stop()

	v, err := w.Do(func(ws *Workspace) interface{} { return ws.Get("none") == nil })
	if err != nil || v != true {
		t.Errorf("Do = %v, %v", v, err)
	}

	_, err = w.Do(func(ws *Workspace) interface{} { panic("boom") })
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("panic should surface as an error, got %v", err)
	}

	// the worker survives a panic
	if _, err := w.Do(func(ws *Workspace) interface{} { return nil }); err != nil {
		t.Errorf("Do after panic: %v", err)
	}
}

func TestWorkerStopped(t *testing.T) {
	w := NewWorker(NewWorkspace(nil))
	w.Stop()
	if _, err := w.Do(func(ws *Workspace) interface{} { return nil }); err == nil {
		t.Error("Do on a stopped worker should fail")
	}
}
