package assistant

type State int32

const (
	Idle State = iota
	Awake
	Listening
	Dispatching
	Sleeping
	Exit
)

var stateNames = [...]string{"idle", "awake", "listening", "dispatching", "sleeping", "exit"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
