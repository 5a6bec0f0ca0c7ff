package strategy

// Context is the run-scoped input to a strategy execution: the shared file
// set, the resolved worker list for this invocation, the run options, and
// the Additional bag used for forward propagation between steps.
//
// Context is read-only to workers. The Additional bag is extended
// copy-on-write: Extend and friends return a new Context so a record
// already handed to a worker is never mutated afterwards, even while
// sibling workers run concurrently.
type Context struct {
	Files      []File
	Agents     []WorkerConfig
	Options    Options
	Additional map[string]any
}

// NewContext creates a run context.
func NewContext(files []File, agents []WorkerConfig, options Options) *Context {
	return &Context{
		Files:      files,
		Agents:     agents,
		Options:    options,
		Additional: map[string]any{},
	}
}

// Extend returns a copy of the context with one additional entry.
func (c *Context) Extend(key string, value any) *Context {
	return c.ExtendAll(map[string]any{key: value})
}

// ExtendAll returns a copy of the context with all given entries added.
// Existing entries are carried over; the receiver is left untouched.
func (c *Context) ExtendAll(entries map[string]any) *Context {
	next := c.clone()
	for k, v := range entries {
		next.Additional[k] = v
	}
	return next
}

// WithAgents returns a copy of the context scoped to the given workers.
func (c *Context) WithAgents(agents []WorkerConfig) *Context {
	next := c.clone()
	next.Agents = agents
	return next
}

// WithFiles returns a copy of the context scoped to the given file view.
func (c *Context) WithFiles(files []File) *Context {
	next := c.clone()
	next.Files = files
	return next
}

// FilePaths returns the paths of the context's file view.
func (c *Context) FilePaths() []string {
	paths := make([]string, len(c.Files))
	for i, f := range c.Files {
		paths[i] = f.Path
	}
	return paths
}

func (c *Context) clone() *Context {
	additional := make(map[string]any, len(c.Additional))
	for k, v := range c.Additional {
		additional[k] = v
	}
	return &Context{
		Files:      c.Files,
		Agents:     c.Agents,
		Options:    c.Options,
		Additional: additional,
	}
}
