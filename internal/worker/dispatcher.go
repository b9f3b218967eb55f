package worker

// NewDispatcher joins a workspace manager and a session manager into the
// dispatch contract the orchestration loop consumes. When the workspace
// manager can commit pending changes, the returned dispatcher exposes that
// as well.
func NewDispatcher(workspaces WorkspaceManager, sessions SessionManager) Dispatcher {
	d := dispatcher{workspaces, sessions}
	if c, ok := workspaces.(Committer); ok {
		return committingDispatcher{d, c}
	}
	return d
}

type dispatcher struct {
	WorkspaceManager
	SessionManager
}

type committingDispatcher struct {
	dispatcher
	Committer
}
