package engine

import (
	"slices"
	"strings"
)

var DefaultAssetCatalog = []string{"Treasure Chest", "Magic Sword", "Potion"}

func DefaultRules() Rules {
	return Rules{
		MaxPlayers:       10,
		ReservedHostName: "Samuel",
		HostRequirement:  HostRequirementHost,
		HostObservesOnly: true,
		GridColumns:      40,
		GridRows:         25,
		AssetCatalog:     slices.Clone(DefaultAssetCatalog),
	}
}

// NewRoomState returns the empty Lobby-phase state of a room, with the asset
// catalog unplaced. Asset ids start at 1.
func NewRoomState(room string, rules Rules) State {
	assets := make([]Asset, 0, len(rules.AssetCatalog))
	for i, name := range rules.AssetCatalog {
		assets = append(assets, Asset{ID: i + 1, Name: name})
	}
	return State{
		Room:        room,
		Players:     []Identity{},
		Battlefield: []string{},
		Phase:       PhaseLobby,
		Assets:      assets,
		Rules:       rules,
	}
}

// Clone deep-copies s so the copy can be mutated or shared freely.
func (s State) Clone() State {
	c := s
	c.Creator = cloneIdentity(s.Creator)
	c.Host = cloneIdentity(s.Host)
	c.Players = append(make([]Identity, 0, len(s.Players)), s.Players...)
	c.Battlefield = append(make([]string, 0, len(s.Battlefield)), s.Battlefield...)
	c.Assets = make([]Asset, len(s.Assets))
	for i, a := range s.Assets {
		c.Assets[i] = a
		if a.Position != nil {
			p := *a.Position
			c.Assets[i].Position = &p
		}
	}
	c.Rules.AssetCatalog = slices.Clone(s.Rules.AssetCatalog)
	return c
}

func cloneIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// members lists every identity in the room once: creator, host, players.
func members(s State) []Identity {
	var out []Identity
	if s.Creator != nil {
		out = append(out, *s.Creator)
	}
	if s.Host != nil && (s.Creator == nil || s.Host.ConnID != s.Creator.ConnID) {
		out = append(out, *s.Host)
	}
	return append(out, s.Players...)
}

func memberByConn(s State, connID string) (Identity, bool) {
	if connID == "" {
		return Identity{}, false
	}
	for _, id := range members(s) {
		if id.ConnID == connID {
			return id, true
		}
	}
	return Identity{}, false
}

func memberByName(s State, name string) (Identity, bool) {
	for _, id := range members(s) {
		if sameName(id.Name, name) {
			return id, true
		}
	}
	return Identity{}, false
}

// MemberByConn exposes the room identity bound to a connection.
func (s State) MemberByConn(connID string) (Identity, bool) {
	return memberByConn(s, connID)
}

// ConnIDs lists the connection id of every member.
func (s State) ConnIDs() []string {
	ms := members(s)
	ids := make([]string, 0, len(ms))
	for _, id := range ms {
		ids = append(ids, id.ConnID)
	}
	return ids
}

// removeMember purges connID from every seat and from the battlefield.
func removeMember(s *State, connID string) (Identity, bool) {
	var (
		gone  Identity
		found bool
	)
	if s.Creator != nil && s.Creator.ConnID == connID {
		gone, found = *s.Creator, true
		s.Creator = nil
	}
	if s.Host != nil && s.Host.ConnID == connID {
		if !found {
			gone, found = *s.Host, true
		}
		s.Host = nil
	}
	if i := slices.IndexFunc(s.Players, func(p Identity) bool { return p.ConnID == connID }); i >= 0 {
		if !found {
			gone, found = s.Players[i], true
		}
		s.Players = slices.Delete(s.Players, i, i+1)
	}
	s.Battlefield = slices.DeleteFunc(s.Battlefield, func(c string) bool { return c == connID })
	return gone, found
}

func inGrid(r Rules, x, y int) bool {
	return x >= 0 && y >= 0 && x < r.GridColumns && y < r.GridRows
}
