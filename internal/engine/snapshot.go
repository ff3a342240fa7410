package engine

// Snapshot is the serializable view of a room sent to every member.
type Snapshot struct {
	Room               string     `json:"room"`
	Phase              Phase      `json:"phase"`
	Creator            *Identity  `json:"creator"`
	Host               *Identity  `json:"host"`
	HostPresent        bool       `json:"hostPresent"`
	Players            []Identity `json:"players"`
	BattlefieldMembers []string   `json:"battlefieldMembers"`
	Assets             []Asset    `json:"assets"`
	MaxPlayers         int        `json:"maxPlayers"`
}

// Snapshot returns a deep copy; callers may hand it to several goroutines.
func (s State) Snapshot() Snapshot {
	c := s.Clone()
	return Snapshot{
		Room:               c.Room,
		Phase:              c.Phase,
		Creator:            c.Creator,
		Host:               c.Host,
		HostPresent:        c.Host != nil,
		Players:            c.Players,
		BattlefieldMembers: c.Battlefield,
		Assets:             c.Assets,
		MaxPlayers:         c.Rules.MaxPlayers,
	}
}
