package vm

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Stdlib holds the native externs declared by the builtin "std" module.
var Stdlib = map[string]ExternFunc{
	"printf": arity(1, stdPrintf),
	"puts":   arity(1, stdPuts),
	"strlen": arity(1, stdStrlen),
	"strcat": arity(2, stdStrcat),
	"itos":   arity(1, stdItos),
	"ftos":   arity(1, stdFtos),
	"sqrt":   arity(1, stdSqrt),
}

// arity guards fn against calls with fewer than n argument slots.
func arity(n int, fn ExternFunc) ExternFunc {
	return func(m *VM, args []Object) int {
		if len(args) < n {
			m.Fail("extern expects %d arguments, got %d", n, len(args))
			return 0
		}
		return fn(m, args)
	}
}

// BindStdlib binds every Stdlib extern the program declares.
func (m *VM) BindStdlib() int {
	return m.BindLibrary(Stdlib)
}

func argStr(m *VM, args []Object, i int) (string, bool) {
	s, ok := args[i].(Str)
	if !ok {
		m.mismatch("str", args[i])
	}
	return string(s), ok
}

func stdPrintf(m *VM, args []Object) int {
	format, ok := argStr(m, args, 0)
	if !ok {
		return 0
	}
	io.WriteString(m.Stdout, Sprintf(format, args[1:]))
	return 0
}

// Sprintf formats args with the directives %i and %d (int), %f (float),
// %s (text) and %%. Mismatched or missing arguments print as %!verb(type).
func Sprintf(format string, args []Object) string {
	var sb strings.Builder
	next := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 == len(format) {
			sb.WriteByte(c)
			continue
		}
		i++
		verb := format[i]
		if verb == '%' {
			sb.WriteByte('%')
			continue
		}
		var arg Object
		if next < len(args) {
			arg = args[next]
			next++
		}
		switch v := arg.(type) {
		case Int:
			if verb == 'i' || verb == 'd' {
				sb.WriteString(v.String())
				continue
			}
		case Float:
			if verb == 'f' {
				sb.WriteString(strconv.FormatFloat(float64(v), 'f', 6, 32))
				continue
			}
		case Str:
			if verb == 's' {
				sb.WriteString(string(v))
				continue
			}
		}
		if arg == nil {
			fmt.Fprintf(&sb, "%%!%c(missing)", verb)
		} else {
			fmt.Fprintf(&sb, "%%!%c(%s)", verb, TypeName(arg))
		}
	}
	return sb.String()
}

func stdPuts(m *VM, args []Object) int {
	s, ok := argStr(m, args, 0)
	if !ok {
		return 0
	}
	io.WriteString(m.Stdout, s+"\n")
	return 0
}

func stdStrlen(m *VM, args []Object) int {
	s, ok := argStr(m, args, 0)
	if !ok {
		return 0
	}
	m.Push(Int(len(s)))
	return 1
}

func stdStrcat(m *VM, args []Object) int {
	a, ok := argStr(m, args, 0)
	if !ok {
		return 0
	}
	b, ok := argStr(m, args, 1)
	if !ok {
		return 0
	}
	m.Push(Str(a + b))
	return 1
}

func stdItos(m *VM, args []Object) int {
	i, ok := args[0].(Int)
	if !ok {
		m.mismatch("int", args[0])
		return 0
	}
	m.Push(Str(i.String()))
	return 1
}

func stdFtos(m *VM, args []Object) int {
	f, ok := args[0].(Float)
	if !ok {
		m.mismatch("float", args[0])
		return 0
	}
	m.Push(Str(f.String()))
	return 1
}

func stdSqrt(m *VM, args []Object) int {
	f, ok := args[0].(Float)
	if !ok {
		m.mismatch("float", args[0])
		return 0
	}
	m.Push(Float(math.Sqrt(float64(f))))
	return 1
}
