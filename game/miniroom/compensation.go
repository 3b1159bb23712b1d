package miniroom

// compensation collects undo steps for a change spread over collaborators
// that cannot share a transaction, such as a wallet and a bag.
type compensation struct {
	undo []func()
}

func (c *compensation) push(fn func()) {
	c.undo = append(c.undo, fn)
}

// rollback runs the undo steps in reverse order and forgets them.
func (c *compensation) rollback() {
	for i := len(c.undo) - 1; i >= 0; i-- {
		c.undo[i]()
	}
	c.undo = nil
}
