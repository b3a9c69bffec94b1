package stateflow

// Affinity declares where a callback is allowed to execute.
type Affinity int

const (
	// AffinityLocal callbacks run in the process that owns the state.
	AffinityLocal Affinity = iota
	// AffinityRemote callbacks run on the remote executor peer.
	AffinityRemote
)

func (a Affinity) String() string {
	switch a {
	case AffinityLocal:
		return "local"
	case AffinityRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Body is the pure function backing a callback: it reads declared inputs from
// the state view and returns fresh output values. Body may be nil for a
// remote callback whose code is not linked into this binary; invoking a nil
// body is a misconfiguration surfaced by the executor.
type Body func(State) ([]Value, error)

// Callback maps a set of input identifiers to updated output values.
// Callbacks are identified by name: two callbacks are the same callback iff
// their names match.
type Callback struct {
	Name     string
	Body     Body
	Inputs   []Identifier
	Outputs  []Identifier
	Affinity Affinity
}

// CallbackID is the opaque handle for a registered callback. It is the
// registration index and is stable only once the registry is frozen.
type CallbackID int

// Index returns the position of the callback in the registry.
func (id CallbackID) Index() int { return int(id) }

// RegisteredCallback pairs a callback with its assigned id.
type RegisteredCallback struct {
	ID       CallbackID
	Callback Callback
}
