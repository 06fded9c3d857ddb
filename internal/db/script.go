package db

// Script is a Lua script executed by a ScriptRunner.
// Scripts return an integer reply; a nil reply surfaces as ErrKeyNotFound.
type Script struct {
	name string
	src  string
}

// NewScript declares a named script. The name is used for error context only.
func NewScript(name, src string) *Script {
	return &Script{name: name, src: src}
}

// Name returns the script name.
func (s *Script) Name() string { return s.name }

// Source returns the Lua source.
func (s *Script) Source() string { return s.src }

// ScriptCall is one invocation in a pipelined RunMulti.
type ScriptCall struct {
	Keys []string
	Args []string
}
