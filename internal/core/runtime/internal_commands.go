package runtime

import "github.com/asynkron/diffapply/internal/core/schema"

// DefaultInternalCommands builds the agent-scoped commands keyed by tool name,
// ready to be registered with a host runtime.
func DefaultInternalCommands(opts ApplyOptions) (map[string]InternalCommandHandler, error) {
	cmd, err := NewApplyPatchCommand(opts)
	if err != nil {
		return nil, err
	}
	return map[string]InternalCommandHandler{
		schema.ToolName: cmd.Handler(),
	}, nil
}
