package robot

import "sync"

// State is the behavior the control task is executing.
type State int

const (
	LineFollowing State = iota
	ObstacleAvoidance
	BarcodeScanning
	WaitingForJunction
	ExecutingTurn
)

var stateLabels = [...]string{"LINE", "AVOID", "SCAN", "WAIT", "TURN"}

// String returns the short label used in telemetry.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateLabels) {
		return "UNKNOWN"
	}
	return stateLabels[s]
}

// maxToken bounds the pending turn token.
const maxToken = 8

// Shared holds the three variables the watchers and the control task share.
// Each has its own mutex and no method holds more than one.
type Shared struct {
	obstacleMu sync.Mutex
	obstacle   bool

	stateMu sync.Mutex
	state   State

	turnMu  sync.Mutex
	turn    string
	hasTurn bool
}

// NewShared starts in LineFollowing with nothing pending.
func NewShared() *Shared { return &Shared{state: LineFollowing} }

// RaiseObstacle sets the obstacle flag.
func (s *Shared) RaiseObstacle() {
	s.obstacleMu.Lock()
	s.obstacle = true
	s.obstacleMu.Unlock()
}

// DrainObstacle reads and clears the obstacle flag in one step.
func (s *Shared) DrainObstacle() bool {
	s.obstacleMu.Lock()
	defer s.obstacleMu.Unlock()
	v := s.obstacle
	s.obstacle = false
	return v
}

// State returns the current behavior.
func (s *Shared) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// SetState forces the behavior.
func (s *Shared) SetState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// TransitionIf moves from one behavior to another only if from is current.
func (s *Shared) TransitionIf(from, to State) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

// SetTurn stores the pending turn token, truncated to maxToken bytes.
func (s *Shared) SetTurn(token string) {
	if len(token) > maxToken {
		token = token[:maxToken]
	}
	s.turnMu.Lock()
	s.turn, s.hasTurn = token, true
	s.turnMu.Unlock()
}

// TakeTurn returns the pending token once.
func (s *Shared) TakeTurn() (string, bool) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()
	t, ok := s.turn, s.hasTurn
	s.turn, s.hasTurn = "", false
	return t, ok
}
