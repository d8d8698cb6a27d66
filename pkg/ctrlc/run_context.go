package ctrlc

// RunContext is passed on to the sub-commands
type RunContext struct {
	params Parameters
}

// NewRunContext creates a new run context for the sub-commands
func NewRunContext(params Parameters) *RunContext {
	return &RunContext{params: params}
}

// ClientParams returns the client parameters
func (r *RunContext) ClientParams() ClientParameters {
	return r.params.Client
}

// Commands returns the command list
func (r *RunContext) Commands() CommandList {
	return r.params.Commands
}
