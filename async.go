package pgsqlkit

import "context"

type EventKind uint8

const (
	ConnectionDidComplete EventKind = iota + 1
	CommandDidComplete
)

func (k EventKind) String() string {
	switch k {
	case ConnectionDidComplete:
		return "ConnectionDidComplete"
	case CommandDidComplete:
		return "CommandDidComplete"
	default:
		return "Unknown"
	}
}

// Completion is the outcome of an async operation. It is delivered once on
// the channel returned by the call and broadcast to every Subscribe channel.
type Completion struct {
	Kind EventKind
	Conn *Connection
	// Recordset is set for a successful OpenAsync; the caller of OpenAsync
	// owns it and must Close it.
	Recordset *Recordset
	Err       error
	// Message is the connection's error text at completion, "" on success.
	Message string
}

func (c Completion) OK() bool { return c.Err == nil }

// ConnectAsync starts Connect in the background.
func (c *Connection) ConnectAsync() <-chan Completion {
	return c.startAsync(ConnectionDidComplete, func(ctx context.Context) (*Recordset, error) {
		return nil, c.connect(ctx)
	})
}

// ExecCommandAsync starts ExecCommand in the background.
func (c *Connection) ExecCommandAsync(sql string, params ...Param) <-chan Completion {
	return c.startAsync(CommandDidComplete, func(ctx context.Context) (*Recordset, error) {
		return nil, c.execCommand(ctx, sql, params)
	})
}

// OpenAsync starts Open in the background.
func (c *Connection) OpenAsync(sql string, params ...Param) <-chan Completion {
	return c.startAsync(CommandDidComplete, func(ctx context.Context) (*Recordset, error) {
		return c.open(ctx, sql, params)
	})
}

// startAsync returns at once. The operation runs under the connection's
// lifetime context, so Close cancels it; there is no other way to stop it.
func (c *Connection) startAsync(kind EventKind, run func(ctx context.Context) (*Recordset, error)) <-chan Completion {
	done := make(chan Completion, 1)
	if !c.busy.CompareAndSwap(false, true) {
		c.reject(done, kind, ErrBusy)
		return done
	}

	c.mu.Lock()
	if c.closing > 0 {
		c.mu.Unlock()
		c.busy.Store(false)
		c.reject(done, kind, ErrClosing)
		return done
	}
	ctx := c.ctx
	// registered under mu so Close never waits on a group that is growing
	c.async.Go(func() {
		rs, err := run(ctx)
		comp := Completion{Kind: kind, Conn: c, Recordset: rs, Err: err}
		if err != nil {
			comp.Message = errorText(err)
		}
		// free the connection before anyone hears about the completion
		c.busy.Store(false)
		c.deliver(done, comp)
	})
	c.mu.Unlock()
	return done
}

func (c *Connection) reject(done chan Completion, kind EventKind, err error) {
	err = c.fail(err)
	c.deliver(done, Completion{Kind: kind, Conn: c, Err: err, Message: errorText(err)})
}

func (c *Connection) deliver(done chan Completion, comp Completion) {
	done <- comp
	close(done)
	hub.publish(comp)
}
