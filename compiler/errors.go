package compiler

import "fmt"

// Error is a compile-time diagnostic. Compilation stops at the first one.
type Error struct {
	Module string
	Pos    Position
	Msg    string
}

func (e *Error) Error() string {
	if e.Module != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.Module, e.Pos.Line, e.Pos.Column, e.Msg)
	}
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

func errorAt(module string, pos Position, format string, args ...interface{}) *Error {
	return &Error{Module: module, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
