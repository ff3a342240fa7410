package engine

import (
	"slices"
	"strings"
)

// Decision is the outcome of an admission check. Evict lists connections that
// must be removed (and closed) before the request is seated.
type Decision struct {
	Reason Code
	Evict  []string
}

func (d Decision) Accepted() bool { return d.Reason == "" }

// AdmissionRule inspects a join request and either rejects it with one of
// AdmissionReasons or records side effects on d. Rules must not modify s.
type AdmissionRule func(s State, req Identity, d *Decision) Code

type Policy struct {
	Rules []AdmissionRule
}

// NewPolicy assembles the admission rules enabled by r. Order matters: seat
// evictions are computed before the name check so a reconnecting host does
// not collide with its own stale seat.
func NewPolicy(r Rules) Policy {
	rules := []AdmissionRule{requireFields}
	if r.ReservedHostName != "" {
		rules = append(rules, reservedHostName(r.ReservedHostName, r.CreatorIsHost))
	}
	rules = append(rules, privilegedSeat(r.CreatorIsHost))

	switch r.HostRequirement {
	case HostRequirementHost:
		rules = append(rules, hostPresent(false))
	case HostRequirementHostOrCreator:
		rules = append(rules, hostPresent(true))
	}

	if r.MaxPlayers > 0 {
		rules = append(rules, playerCapacity(r.MaxPlayers))
	}
	return Policy{Rules: append(rules, uniqueName)}
}

func (p Policy) Decide(s State, req Identity) Decision {
	var d Decision
	for _, rule := range p.Rules {
		if reason := rule(s, req, &d); reason != "" {
			return Decision{Reason: reason}
		}
	}
	return d
}

// Decide runs the policy configured by s.Rules.
func Decide(s State, req Identity) Decision {
	return NewPolicy(s.Rules).Decide(s, req)
}

func requireFields(_ State, req Identity, _ *Decision) Code {
	if req.ConnID == "" || strings.TrimSpace(req.Name) == "" || !req.Role.Valid() {
		return CodeMissingFields
	}
	return ""
}

func reservedHostName(name string, creatorIsHost bool) AdmissionRule {
	return func(_ State, req Identity, _ *Decision) Code {
		claimsHost := req.Role == RoleHost || (creatorIsHost && req.Role == RoleCreator)
		if claimsHost && !sameName(req.Name, name) {
			return CodeNotAuthorizedForHost
		}
		return ""
	}
}

// privilegedSeat allows a single occupant per seat. A claim by the name already
// seated replaces the stale occupant.
func privilegedSeat(creatorIsHost bool) AdmissionRule {
	return func(s State, req Identity, d *Decision) Code {
		var seats []*Identity
		switch req.Role {
		case RoleHost:
			seats = []*Identity{s.Host}
		case RoleCreator:
			seats = []*Identity{s.Creator}
			if creatorIsHost {
				seats = append(seats, s.Host)
			}
		default:
			return ""
		}

		for _, occupant := range seats {
			if occupant == nil || occupant.ConnID == req.ConnID {
				continue
			}
			if !sameName(occupant.Name, req.Name) {
				return CodeHostSlotTaken
			}
			if !slices.Contains(d.Evict, occupant.ConnID) {
				d.Evict = append(d.Evict, occupant.ConnID)
			}
		}
		return ""
	}
}

func hostPresent(creatorSuffices bool) AdmissionRule {
	return func(s State, req Identity, _ *Decision) Code {
		if req.Role != RolePlayer {
			return ""
		}
		if s.Host != nil && s.Host.ConnID != req.ConnID {
			return ""
		}
		if creatorSuffices && s.Creator != nil && s.Creator.ConnID != req.ConnID {
			return ""
		}
		return CodeHostRequiredFirst
	}
}

func playerCapacity(max int) AdmissionRule {
	return func(s State, req Identity, _ *Decision) Code {
		if req.Role != RolePlayer {
			return ""
		}
		n := 0
		for _, p := range s.Players {
			if p.ConnID != req.ConnID {
				n++
			}
		}
		if n >= max {
			return CodeRoomFull
		}
		return ""
	}
}

func uniqueName(s State, req Identity, d *Decision) Code {
	for _, m := range members(s) {
		if m.ConnID == req.ConnID || slices.Contains(d.Evict, m.ConnID) {
			continue
		}
		if sameName(m.Name, req.Name) {
			return CodeNameTaken
		}
	}
	return ""
}
