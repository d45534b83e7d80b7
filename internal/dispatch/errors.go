package dispatch

import "fmt"

// MissingParamError reports a required parameter that was absent or empty.
// The CLI renders it as a usage line on stderr with exit code 2; no
// subprocess is spawned.
type MissingParamError struct {
	Target string
	Param  string
	Usage  string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("target %q: required parameter %q is missing or empty", e.Target, e.Param)
}

// UnknownTargetError reports a dispatch key with no registered spec.
type UnknownTargetError struct {
	Name string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown target %q", e.Name)
}
