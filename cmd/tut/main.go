// tut CLI - compiles and runs tut programs
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"

	"github.com/chazu/tut/compiler"
	"github.com/chazu/tut/manifest"
	"github.com/chazu/tut/pkg/bytecode"
	"github.com/chazu/tut/pkg/image"
	"github.com/chazu/tut/server"
	"github.com/chazu/tut/vm"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

type options struct {
	dir       string
	output    string
	imagePath string
	disasm    bool
	lsp       bool
	trace     bool
	verbosity int
	args      []string
}

func main() {
	var opts options
	flag.StringVar(&opts.dir, "C", "", "Load tut.toml from this directory")
	flag.StringVar(&opts.output, "o", "", "Write a program image instead of running")
	flag.StringVar(&opts.imagePath, "image", "", "Run a program image")
	flag.BoolVar(&opts.disasm, "disasm", false, "Print the bytecode listing instead of running")
	flag.BoolVar(&opts.lsp, "lsp", false, "Serve the language server on stdio")
	flag.BoolVar(&opts.trace, "trace", false, "Trace every executed instruction")
	flag.IntVar(&opts.verbosity, "v", -1, "Log verbosity (overrides tut.toml)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tut [options] [file.tut]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles and runs a tut program. Without a file the entry of tut.toml is used.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tut hello.tut             # Compile and run\n")
		fmt.Fprintf(os.Stderr, "  tut -o hello.tutc hello.tut  # Write an image\n")
		fmt.Fprintf(os.Stderr, "  tut -image hello.tutc     # Run an image\n")
		fmt.Fprintf(os.Stderr, "  tut -disasm hello.tut     # Print the listing\n")
		fmt.Fprintf(os.Stderr, "  tut -C ./project          # Run the project in ./project\n")
		fmt.Fprintf(os.Stderr, "  tut -lsp                  # Start the language server\n")
	}
	flag.Parse()
	opts.args = flag.Args()

	m, err := loadManifest(opts.dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	configureLogging(m, opts.verbosity)

	if opts.lsp {
		var loader compiler.Loader
		if m != nil {
			loader = m.Loader()
		}
		if err := server.NewLSP(loader, version).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	code, err := run(opts, m, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

// loadManifest loads tut.toml from dir, or searches upwards from the
// working directory when dir is empty. No manifest is not an error then.
func loadManifest(dir string) (*manifest.Manifest, error) {
	if dir != "" {
		return manifest.Load(dir)
	}
	return manifest.FindAndLoad(".")
}

func configureLogging(m *manifest.Manifest, verbosity int) {
	var path *string
	if m != nil {
		if verbosity < 0 {
			verbosity = m.Log.Verbosity
		}
		if m.Log.File != "" {
			file := m.Log.File
			if !filepath.IsAbs(file) {
				file = filepath.Join(m.Dir, file)
			}
			path = &file
		}
	}
	if verbosity < 0 {
		verbosity = 0
	}
	commonlog.Configure(verbosity, path)
}

// run builds or loads the program and executes it, writes its image or
// prints its listing. The returned code is the process exit status.
func run(opts options, m *manifest.Manifest, stdout io.Writer) (int, error) {
	prog, root, err := program(opts, m)
	if err != nil {
		return 1, err
	}

	if opts.output != "" {
		if err := image.WriteFile(opts.output, image.New(prog, root)); err != nil {
			return 1, err
		}
		return 0, nil
	}
	if opts.disasm {
		fmt.Fprint(stdout, prog.Disassemble())
		return 0, nil
	}

	cfg := vm.Config{}
	if m != nil {
		cfg = m.Config()
	}
	cfg.Stdout = stdout
	cfg.Trace = cfg.Trace || opts.trace

	machine := vm.New(prog, cfg)
	machine.BindStdlib()
	if unbound := machine.Unbound(); len(unbound) > 0 {
		return 1, fmt.Errorf("unbound externs: %v", unbound)
	}
	if err := machine.Run(); err != nil {
		return 1, err
	}
	return exitCode(machine.Result()), nil
}

// program compiles the requested source file or reads the requested image.
// It also returns the name of the root module.
func program(opts options, m *manifest.Manifest) (*bytecode.Program, string, error) {
	if opts.imagePath != "" {
		img, err := image.ReadFile(opts.imagePath)
		if err != nil {
			return nil, "", err
		}
		return img.Program, img.Header.Entry, nil
	}

	var path string
	switch {
	case len(opts.args) > 0:
		path = opts.args[0]
	case m != nil:
		path = m.EntryPath()
	default:
		return nil, "", fmt.Errorf("no source file given and no %s found", manifest.FileName)
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	var loader compiler.Loader = compiler.DirLoader{Dirs: []string{filepath.Dir(path)}}
	if m != nil {
		loader = m.Loader()
	}
	prog, _, err := compiler.CompileFile(path, loader)
	if err != nil {
		return nil, "", err
	}
	return prog, compiler.ModuleName(path), nil
}

// exitCode uses a single int result of the entry function as the exit
// status.
func exitCode(result []vm.Object) int {
	if len(result) == 1 {
		if i, ok := result[0].(vm.Int); ok {
			return int(i)
		}
	}
	return 0
}
