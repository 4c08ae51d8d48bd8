package states

// Faulted is out of service until Manager.Recover.
type Faulted struct{}

func (Faulted) Name() string { return "Faulted" }
func (Faulted) sealed()      {}

func (Faulted) OnPlug(*Context, Plug) (*Future, error)     { return notExecuted() }
func (Faulted) OnUnplug(*Context, Unplug) (*Future, error) { return notExecuted() }

func (Faulted) OnAuthorize(*Context, Authorize) (*Future, error) {
	return notExecuted()
}

func (Faulted) OnRemoteStart(*Context, RemoteStart) (*Future, error) {
	return notExecuted()
}

func (Faulted) OnRemoteStop(*Context, RemoteStop) (*Future, error) {
	return notExecuted()
}

func (Faulted) OnCancelRemoteStart(*Context, CancelRemoteStart) (*Future, error) {
	return notExecuted()
}
