package server

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/tut/compiler"
)

const lspName = "tut-lsp"

// LspServer bridges LSP editor features to the compiler via Worker.
type LspServer struct {
	worker *Worker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
	log     commonlog.Logger
}

// NewLSP creates a new LSP server resolving imports through loader.
func NewLSP(loader compiler.Loader, version string) *LspServer {
	s := &LspServer{
		worker:  NewWorker(NewWorkspace(loader)),
		docs:    make(map[string]string),
		version: version,
		log:     commonlog.GetLogger("tut.server"),
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	s.log.Info("tut LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	s.worker.Do(func(ws *Workspace) interface{} {
		ws.Forget(string(uri))
		return nil
	})

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) text(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

func (s *LspServer) analysis(uri protocol.DocumentUri) *Analysis {
	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		return ws.Get(string(uri))
	})
	if err != nil || result == nil {
		return nil
	}
	return result.(*Analysis)
}

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.text(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}

	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		return complete(ws.Get(string(params.TextDocument.URI)), prefix)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.text(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	a := s.analysis(params.TextDocument.URI)
	if a == nil {
		return nil, nil
	}
	return hover(a, word), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	text, ok := s.text(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	a := s.analysis(params.TextDocument.URI)
	if a == nil {
		return nil, nil
	}
	sym, ok := a.Lookup(word)
	if !ok || !sym.Local {
		return nil, nil
	}
	pos := toProtocolPosition(sym.Pos)
	return []protocol.Location{{
		URI:   params.TextDocument.URI,
		Range: protocol.Range{Start: pos, End: pos},
	}}, nil
}

// complete returns declared names and keywords starting with prefix.
func complete(a *Analysis, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem

	if a != nil {
		for _, sym := range a.Symbols() {
			if !strings.HasPrefix(sym.Name, prefix) {
				continue
			}
			kind := completionKind(sym.Kind)
			detail := sym.Detail
			items = append(items, protocol.CompletionItem{
				Label:  sym.Name,
				Kind:   &kind,
				Detail: &detail,
			})
		}
	}

	keywords := compiler.Keywords()
	sort.Strings(keywords)
	for _, kw := range keywords {
		if strings.HasPrefix(kw, prefix) {
			kind := protocol.CompletionItemKindKeyword
			items = append(items, protocol.CompletionItem{Label: kw, Kind: &kind})
		}
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

func completionKind(k SymbolKind) protocol.CompletionItemKind {
	switch k {
	case SymbolFunction, SymbolExtern:
		return protocol.CompletionItemKindFunction
	case SymbolType:
		return protocol.CompletionItemKindStruct
	default:
		return protocol.CompletionItemKindVariable
	}
}

func hover(a *Analysis, word string) *protocol.Hover {
	sym, ok := a.Lookup(word)
	if !ok {
		return nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: "```tut\n" + sym.Detail + "\n```",
		},
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		return ws.Analyze(string(uri), text).Diagnostics()
	})
	if err != nil {
		s.log.Errorf("analyzing %s: %s", uri, err)
		return
	}

	diagnostics := []protocol.Diagnostic{}
	for _, d := range result.([]Diagnostic) {
		severity := protocol.DiagnosticSeverityError
		source := lspName
		pos := protocol.Position{Line: protocol.UInteger(d.Line), Character: protocol.UInteger(d.Column)}
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    protocol.Range{Start: pos, End: pos},
			Severity: &severity,
			Source:   &source,
			Message:  d.Message,
		})
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// --- Text extraction helpers ---

func toProtocolPosition(p compiler.Position) protocol.Position {
	var pos protocol.Position
	if p.Line > 0 {
		pos.Line = protocol.UInteger(p.Line - 1)
	}
	if p.Column > 0 {
		pos.Character = protocol.UInteger(p.Column - 1)
	}
	return pos
}

func isIdentChar(ch byte) bool {
	return ch == '_' || unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch))
}

// extractPrefix returns the identifier fragment before the cursor.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentChar(line[start-1]) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentChar(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isIdentChar(line[end]) {
		end++
	}
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
