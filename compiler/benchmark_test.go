// Compiler and VM benchmarks
//
// Run: go test -bench=. ./compiler/...
// Run with memory stats: go test -bench=. -benchmem ./compiler/...
package compiler

import (
	"bytes"
	"testing"

	"github.com/chazu/tut/vm"
)

const fibSource = `
func fib(n: int): int {
	if n < 2 { return n }
	return fib(n - 1) + fib(n - 2)
}
func _main(): int { return fib(20) }
`

const loopSource = `
struct Acc { n: int; total: float }
func _main(): int {
	var acc: Acc
	acc.n = 0
	acc.total = 0.0
	var r: ref-Acc = &acc
	while r->n < 10000 {
		r->total = r->total + cast(r->n, float) * 0.5
		r->n = r->n + 1
	}
	return r->n
}
`

// ============================================================
// Compilation Benchmarks
// ============================================================

func BenchmarkCompileFib(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, _, err := CompileSource("bench", fibSource, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompileLoop(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, _, err := CompileSource("bench", loopSource, nil); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================
// Execution Benchmarks
// ============================================================

func benchmarkRun(b *testing.B, src string) {
	prog, _, err := CompileSource("bench", src, nil)
	if err != nil {
		b.Fatal(err)
	}
	m := vm.New(prog, vm.Config{Stdout: &bytes.Buffer{}})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := m.Run(); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRunFib measures call and return overhead.
func BenchmarkRunFib(b *testing.B) {
	benchmarkRun(b, fibSource)
}

// BenchmarkRunLoop measures reference access and float arithmetic.
func BenchmarkRunLoop(b *testing.B) {
	benchmarkRun(b, loopSource)
}
