package engine

// PhaseTransitions lists, for each privileged command, the phases it may be
// issued from and the phase the room moves to. ClearRoom is legal from any phase.
var PhaseTransitions = map[CommandType]Transition{
	CmdOpenBattlefield: {From: []Phase{PhaseLobby}, To: PhaseBattlefieldOpen},
	CmdStartGame:       {From: []Phase{PhaseBattlefieldOpen}, To: PhaseInProgress},
	CmdEndGame:         {From: []Phase{PhaseInProgress}, To: PhaseBattlefieldOpen},
	CmdClearRoom:       {From: []Phase{PhaseLobby, PhaseBattlefieldOpen, PhaseInProgress}, To: PhaseLobby},
}

type Transition struct {
	From []Phase
	To   Phase
}

func (t Transition) Allows(p Phase) bool {
	for _, from := range t.From {
		if from == p {
			return true
		}
	}
	return false
}

// transition moves s along the table entry for cmd or fails with ErrInvalidState.
func transition(s *State, cmd CommandType) error {
	t, ok := PhaseTransitions[cmd]
	if !ok {
		return ErrUnsupportedCommand
	}
	if !t.Allows(s.Phase) {
		return invalidState("%s not allowed in phase %s", cmd, s.Phase)
	}
	s.Phase = t.To
	return nil
}

// battlefieldOpen reports whether the play surface accepts members.
func battlefieldOpen(p Phase) bool {
	return p == PhaseBattlefieldOpen || p == PhaseInProgress
}
