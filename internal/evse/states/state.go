package states

// State is one step of the EVSE lifecycle. Every state handles every event;
// an event that does not apply completes with NotExecuted and changes
// nothing. The implementations are the zero-size types in this package.
type State interface {
	Name() string

	OnPlug(c *Context, ev Plug) (*Future, error)
	OnUnplug(c *Context, ev Unplug) (*Future, error)
	OnAuthorize(c *Context, ev Authorize) (*Future, error)
	OnRemoteStart(c *Context, ev RemoteStart) (*Future, error)
	OnRemoteStop(c *Context, ev RemoteStop) (*Future, error)
	OnCancelRemoteStart(c *Context, ev CancelRemoteStart) (*Future, error)

	sealed()
}

func notExecuted() (*Future, error) {
	return Completed(NotExecuted), nil
}

// openTransaction reports whether txID is the transaction open on the EVSE.
func openTransaction(c *Context, txID string) bool {
	tx, ok := c.evse.Transaction()
	return ok && tx.ID() == txID
}
