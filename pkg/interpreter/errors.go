package interpreter

import (
	"errors"
	"fmt"

	"mq/engine-go/pkg/lexer"
)

// Errors fall into three groups: macro-expansion errors raised before
// anything runs, runtime errors that abort the current evaluation, and
// internal loop signals that never escape an enclosing loop. Every
// surfaced error carries the source token it originated from so a front
// end can render a diagnostic.

type UndefinedMacroError struct {
	Name  string
	Token lexer.Token
}

func (e *UndefinedMacroError) Error() string {
	return fmt.Sprintf("undefined macro '%s'", e.Name)
}

type MacroArityError struct {
	Name     string
	Expected int
	Got      int
	Token    lexer.Token
}

func (e *MacroArityError) Error() string {
	return fmt.Sprintf("macro '%s' expects %d arguments but got %d", e.Name, e.Expected, e.Got)
}

type MacroRecursionError struct {
	Limit int
}

func (e *MacroRecursionError) Error() string {
	return fmt.Sprintf("macro expansion exceeded %d levels", e.Limit)
}

// RecursionError reports that the call stack hit the configured depth
// bound before the host stack could grow out of control.
type RecursionError struct {
	MaxDepth int
	Token    lexer.Token
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("recursion limit of %d exceeded", e.MaxDepth)
}

type InvalidNumberOfArgumentsError struct {
	Name     string
	Expected int
	Got      int
	Token    lexer.Token
}

func (e *InvalidNumberOfArgumentsError) Error() string {
	return fmt.Sprintf("function '%s' expects %d arguments but got %d", e.Name, e.Expected, e.Got)
}

// InvalidDefinitionError reports a call through a name or expression
// that did not resolve to anything callable.
type InvalidDefinitionError struct {
	Name  string
	Token lexer.Token
}

func (e *InvalidDefinitionError) Error() string {
	return fmt.Sprintf("'%s' is not a function", e.Name)
}

type InvalidTypesError struct {
	Name  string
	Args  []string
	Token lexer.Token
}

func (e *InvalidTypesError) Error() string {
	if len(e.Args) == 0 {
		return fmt.Sprintf("invalid types for '%s'", e.Name)
	}
	return fmt.Sprintf("invalid types for '%s': %v", e.Name, e.Args)
}

type EnvNotFoundError struct {
	Name  string
	Token lexer.Token
}

func (e *EnvNotFoundError) Error() string {
	return fmt.Sprintf("environment variable '%s' is not set", e.Name)
}

type ZeroDivisionError struct {
	Token lexer.Token
}

func (e *ZeroDivisionError) Error() string {
	return "division by zero"
}

// UserError is raised by the error builtin.
type UserError struct {
	Message string
	Token   lexer.Token
}

func (e *UserError) Error() string {
	return e.Message
}

type NotDefinedError struct {
	Name  string
	Token lexer.Token
}

func (e *NotDefinedError) Error() string {
	return fmt.Sprintf("'%s' is not defined", e.Name)
}

type ModuleError struct {
	Path string
	Err  error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("cannot load module '%s': %v", e.Path, e.Err)
}

func (e *ModuleError) Unwrap() error { return e.Err }

// ErrQuit aborts evaluation when an attached debugger requests it.
var ErrQuit = errors.New("evaluation aborted")

// errBreak and errContinue are loop signals. They are always intercepted
// by the nearest enclosing while/until/foreach; one reaching the top of
// an evaluation is an engine defect and is converted to a runtime error.
var (
	errBreak    = errors.New("break outside of a loop")
	errContinue = errors.New("continue outside of a loop")
)

func isLoopSignal(err error) bool {
	return errors.Is(err, errBreak) || errors.Is(err, errContinue)
}
