package tool

import "errors"

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrExecutionFailed  = errors.New("execution failed")
	ErrDuplicateTool    = errors.New("tool already registered")
)
