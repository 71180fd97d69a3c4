package interpreter

import (
	"mq/engine-go/pkg/ast"
	"mq/engine-go/pkg/runtime"
)

// DebugAction is the handler's verdict at a pause point.
type DebugAction int

const (
	DebugContinue DebugAction = iota
	DebugStepOver
	DebugNext
	DebugFunctionExit
	DebugQuit
	DebugSetBreakpoint
	DebugClearBreakpoint
)

// DebugContext describes the pause point. Handlers returning
// DebugSetBreakpoint or DebugClearBreakpoint put the target line in
// BreakpointLine before returning.
type DebugContext struct {
	Node  ast.Node
	Env   *runtime.Environment
	Line  int
	Depth int

	BreakpointLine int
}

// DebugHandler is invoked at node boundaries while a debugger is
// attached. Evaluation resumes, steps, or aborts according to the
// returned action.
type DebugHandler interface {
	OnPause(ctx *DebugContext) DebugAction
}

// Debugger pauses evaluation at breakpoints and steps. It is attached to
// an engine; with no attached debugger evaluation pays no cost beyond a
// nil check per node.
type Debugger struct {
	handler     DebugHandler
	breakpoints map[int]bool
	stepping    bool
	stepDepth   int
	exitDepth   int
}

func NewDebugger(handler DebugHandler) *Debugger {
	return &Debugger{
		handler:     handler,
		breakpoints: make(map[int]bool),
		stepping:    true,
	}
}

func (d *Debugger) SetBreakpoint(line int)   { d.breakpoints[line] = true }
func (d *Debugger) ClearBreakpoint(line int) { delete(d.breakpoints, line) }

// pause runs the handler command loop when the current node is a pause
// point. A Quit verdict aborts evaluation.
func (d *Debugger) pause(node ast.Node, env *runtime.Environment, depth int) error {
	line := node.Token().Range.Start.Line
	if !d.shouldPause(line, depth) {
		return nil
	}
	ctx := &DebugContext{Node: node, Env: env, Line: line, Depth: depth}
	for {
		switch d.handler.OnPause(ctx) {
		case DebugContinue:
			d.stepping = false
			return nil
		case DebugStepOver:
			d.stepping = true
			d.stepDepth = -1
			return nil
		case DebugNext:
			d.stepping = true
			d.stepDepth = depth
			return nil
		case DebugFunctionExit:
			d.stepping = true
			d.stepDepth = -1
			d.exitDepth = depth
			return nil
		case DebugQuit:
			return ErrQuit
		case DebugSetBreakpoint:
			d.SetBreakpoint(ctx.BreakpointLine)
		case DebugClearBreakpoint:
			d.ClearBreakpoint(ctx.BreakpointLine)
		}
	}
}

func (d *Debugger) shouldPause(line, depth int) bool {
	if d.breakpoints[line] {
		return true
	}
	if !d.stepping {
		return false
	}
	if d.exitDepth > 0 {
		if depth >= d.exitDepth {
			return false
		}
		d.exitDepth = 0
		return true
	}
	if d.stepDepth >= 0 && depth > d.stepDepth {
		return false
	}
	return true
}
