package pipeline

// State is where a run is, or where it stopped.
type State string

const (
	Start      State = "START"
	Fetched    State = "FETCHED"
	Located    State = "LOCATED"
	Retrieving State = "RETRIEVING"
	Assembled  State = "ASSEMBLED"
	Done       State = "DONE"

	FetchFailedState    State = "FETCH_FAILED"
	NoImages            State = "NO_IMAGES"
	NoneRetrieved       State = "NONE_RETRIEVED"
	AssemblyFailedState State = "ASSEMBLY_FAILED"
)

func (s State) String() string {
	return string(s)
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	switch s {
	case Done, FetchFailedState, NoImages, NoneRetrieved, AssemblyFailedState:
		return true
	}

	return false
}
