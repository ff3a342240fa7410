package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func host(conn string) Identity { return Identity{ConnID: conn, Name: "Samuel", Role: RoleHost} }

func player(conn, name string) Identity {
	return Identity{ConnID: conn, Name: name, Role: RolePlayer}
}

func containsEvent(events []Event, eventType EventType) bool {
	return slices.ContainsFunc(events, func(e Event) bool { return e.Type == eventType })
}

// mustApply applies cmd and fails the test on error.
func mustApply(t *testing.T, s State, cmd Command) ([]Event, State) {
	t.Helper()
	events, next, err := Apply(s, cmd)
	if err != nil {
		t.Fatalf("%s: unexpected err: %v", cmd.Type, err)
	}
	return events, next
}

func join(t *testing.T, s State, id Identity) State {
	t.Helper()
	_, next := mustApply(t, s, Command{Type: CmdJoin, Identity: id})
	return next
}

// roomWith returns a room with a host on "h" and the given players.
func roomWith(t *testing.T, rules Rules, players ...string) State {
	t.Helper()
	s := join(t, NewRoomState("R", rules), host("h"))
	for i, name := range players {
		s = join(t, s, player(fmt.Sprintf("p%d", i+1), name))
	}
	return s
}

func TestAdmission(t *testing.T) {
	full := DefaultRules()
	full.MaxPlayers = 2

	cases := []struct {
		name    string
		rules   Rules
		setup   func(t *testing.T, rules Rules) State
		req     Identity
		wantErr error
	}{
		{
			name:    "player before host",
			rules:   DefaultRules(),
			setup:   func(t *testing.T, r Rules) State { return NewRoomState("R", r) },
			req:     player("p1", "Ana"),
			wantErr: ErrHostRequiredFirst,
		},
		{
			name:  "player before host with no requirement",
			rules: func() Rules { r := DefaultRules(); r.HostRequirement = HostRequirementNone; return r }(),
			setup: func(t *testing.T, r Rules) State { return NewRoomState("R", r) },
			req:   player("p1", "Ana"),
		},
		{
			name:  "creator suffices when configured",
			rules: func() Rules { r := DefaultRules(); r.HostRequirement = HostRequirementHostOrCreator; return r }(),
			setup: func(t *testing.T, r Rules) State {
				return join(t, NewRoomState("R", r), Identity{ConnID: "c", Name: "Maker", Role: RoleCreator})
			},
			req: player("p1", "Ana"),
		},
		{
			name:  "creator does not suffice by default",
			rules: DefaultRules(),
			setup: func(t *testing.T, r Rules) State {
				return join(t, NewRoomState("R", r), Identity{ConnID: "c", Name: "Maker", Role: RoleCreator})
			},
			req:     player("p1", "Ana"),
			wantErr: ErrHostRequiredFirst,
		},
		{
			name:    "host with wrong name",
			rules:   DefaultRules(),
			setup:   func(t *testing.T, r Rules) State { return NewRoomState("R", r) },
			req:     Identity{ConnID: "h", Name: "Mallory", Role: RoleHost},
			wantErr: ErrNotAuthorizedForHost,
		},
		{
			name:  "any host name without reservation",
			rules: func() Rules { r := DefaultRules(); r.ReservedHostName = ""; return r }(),
			setup: func(t *testing.T, r Rules) State { return NewRoomState("R", r) },
			req:   Identity{ConnID: "h", Name: "Mallory", Role: RoleHost},
		},
		{
			name:  "second creator",
			rules: DefaultRules(),
			setup: func(t *testing.T, r Rules) State {
				return join(t, NewRoomState("R", r), Identity{ConnID: "c1", Name: "Maker", Role: RoleCreator})
			},
			req:     Identity{ConnID: "c2", Name: "Other", Role: RoleCreator},
			wantErr: ErrHostSlotTaken,
		},
		{
			name:    "room full",
			rules:   full,
			setup:   func(t *testing.T, r Rules) State { return roomWith(t, r, "Ana", "Bo") },
			req:     player("p9", "Cy"),
			wantErr: ErrRoomFull,
		},
		{
			name:    "duplicate name ignores case",
			rules:   DefaultRules(),
			setup:   func(t *testing.T, r Rules) State { return roomWith(t, r, "Ana") },
			req:     player("p9", "  aNA "),
			wantErr: ErrNameTaken,
		},
		{
			name:    "player may not borrow the host name",
			rules:   DefaultRules(),
			setup:   func(t *testing.T, r Rules) State { return roomWith(t, r) },
			req:     player("p9", "samuel"),
			wantErr: ErrNameTaken,
		},
		{
			name:    "blank name",
			rules:   DefaultRules(),
			setup:   func(t *testing.T, r Rules) State { return roomWith(t, r) },
			req:     player("p9", "   "),
			wantErr: ErrMissingFields,
		},
		{
			name:    "unknown role",
			rules:   DefaultRules(),
			setup:   func(t *testing.T, r Rules) State { return roomWith(t, r) },
			req:     Identity{ConnID: "p9", Name: "Ana", Role: "admin"},
			wantErr: ErrMissingFields,
		},
		{
			name:  "same connection re-joins",
			rules: DefaultRules(),
			setup: func(t *testing.T, r Rules) State { return roomWith(t, r, "Ana") },
			req:   player("p1", "Ana"),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.setup(t, tc.rules)
			_, next, err := Apply(s, Command{Type: CmdJoin, Identity: tc.req})
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Empty(t, cmp.Diff(s, next), "state must not change on rejection")
				return
			}
			require.NoError(t, err)
			got, ok := next.MemberByConn(tc.req.ConnID)
			require.True(t, ok)
			assert.Equal(t, tc.req.Role, got.Role)
		})
	}
}

func TestAdmissionReasonsAreClosed(t *testing.T) {
	s := roomWith(t, DefaultRules(), "Ana")
	reqs := []Identity{
		player("x", ""),
		player("x", "ana"),
		{ConnID: "x", Name: "Eve", Role: RoleHost},
		{ConnID: "x", Name: "Samuel", Role: RoleHost},
	}
	for _, req := range reqs {
		d := Decide(s, req)
		if d.Accepted() {
			continue
		}
		assert.Contains(t, AdmissionReasons, d.Reason)
		assert.Equal(t, "admission", d.Reason.Kind())
	}
}

func TestHostReconnectReplacesStaleSeat(t *testing.T) {
	s := roomWith(t, DefaultRules(), "Ana")

	events, next := mustApply(t, s, Command{Type: CmdJoin, Identity: host("h2")})

	require.Len(t, events, 2)
	assert.Equal(t, EvtEvicted, events[0].Type)
	assert.Equal(t, "h", events[0].Identity.ConnID)
	assert.Equal(t, EvictReplaced, events[0].Reason)
	assert.Equal(t, EvtJoined, events[1].Type)

	require.NotNil(t, next.Host)
	assert.Equal(t, "h2", next.Host.ConnID)
	assert.Len(t, next.Players, 1)
}

func TestHostUniquenessUnderRandomClaims(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	s := NewRoomState("R", DefaultRules())

	for i := 0; i < 500; i++ {
		conn := fmt.Sprintf("c%d", rng.IntN(8))
		var id Identity
		switch rng.IntN(3) {
		case 0:
			id = host(conn)
		case 1:
			id = Identity{ConnID: conn, Name: "Samuel", Role: RoleCreator}
		default:
			id = player(conn, fmt.Sprintf("P%d", rng.IntN(4)))
		}
		if rng.IntN(5) == 0 {
			_, s, _ = Apply(s, Command{Type: CmdLeave, Actor: conn})
			continue
		}
		_, s, _ = Apply(s, Command{Type: CmdJoin, Identity: id})

		seen := map[string]bool{}
		for _, m := range members(s) {
			key := strings.ToLower(m.Name)
			if seen[key] {
				t.Fatalf("step %d: duplicate name %q in %+v", i, m.Name, s)
			}
			seen[key] = true
		}
		if s.Host != nil && s.Host.Name != "Samuel" {
			t.Fatalf("step %d: host seat held by %q", i, s.Host.Name)
		}
		for _, p := range s.Players {
			if p.Role != RolePlayer {
				t.Fatalf("step %d: non-player in players: %+v", i, p)
			}
		}
	}
}

func TestCreatorIsHost(t *testing.T) {
	rules := DefaultRules()
	rules.CreatorIsHost = true
	s := NewRoomState("R", rules)

	_, _, err := Apply(s, Command{Type: CmdJoin, Identity: Identity{ConnID: "c", Name: "Maker", Role: RoleCreator}})
	require.ErrorIs(t, err, ErrNotAuthorizedForHost)

	s = join(t, s, Identity{ConnID: "c", Name: "Samuel", Role: RoleCreator})
	require.NotNil(t, s.Host)
	require.NotNil(t, s.Creator)
	assert.Equal(t, s.Creator.ConnID, s.Host.ConnID)
	assert.Equal(t, []string{"c"}, s.ConnIDs())

	s = join(t, s, player("p1", "Ana"))
	_, s = mustApply(t, s, Command{Type: CmdLeave, Actor: "c"})
	assert.Nil(t, s.Host)
	assert.Nil(t, s.Creator)
}

func TestCreatorRemovalCascade(t *testing.T) {
	cases := []struct {
		name     string
		cascade  bool
		wantHost bool
	}{
		{name: "host survives by default", cascade: false, wantHost: true},
		{name: "host follows creator", cascade: true, wantHost: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rules := DefaultRules()
			rules.CascadeCreatorRemoval = tc.cascade
			s := join(t, roomWith(t, rules), Identity{ConnID: "c", Name: "Maker", Role: RoleCreator})

			events, next := mustApply(t, s, Command{Type: CmdLeave, Actor: "c"})
			assert.Equal(t, tc.wantHost, next.Host != nil)
			assert.Equal(t, !tc.wantHost, containsEvent(events, EvtEvicted))
		})
	}
}

func TestPhaseTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    Phase
		players []string
		cmd     CommandType
		want    Phase
		wantErr error
	}{
		{name: "open from lobby", from: PhaseLobby, cmd: CmdOpenBattlefield, want: PhaseBattlefieldOpen},
		{name: "open twice", from: PhaseBattlefieldOpen, cmd: CmdOpenBattlefield, wantErr: ErrInvalidState},
		{name: "start", from: PhaseBattlefieldOpen, players: []string{"Ana"}, cmd: CmdStartGame, want: PhaseInProgress},
		{name: "start without players", from: PhaseBattlefieldOpen, cmd: CmdStartGame, wantErr: ErrInvalidState},
		{name: "start from lobby", from: PhaseLobby, players: []string{"Ana"}, cmd: CmdStartGame, wantErr: ErrInvalidState},
		{name: "end", from: PhaseInProgress, players: []string{"Ana"}, cmd: CmdEndGame, want: PhaseBattlefieldOpen},
		{name: "end in lobby", from: PhaseLobby, cmd: CmdEndGame, wantErr: ErrInvalidState},
		{name: "clear from in progress", from: PhaseInProgress, players: []string{"Ana"}, cmd: CmdClearRoom, want: PhaseLobby},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := roomWith(t, DefaultRules(), tc.players...)
			s.Phase = tc.from

			_, next, err := Apply(s, Command{Type: tc.cmd, Actor: "h"})
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, tc.from, next.Phase)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, next.Phase)
		})
	}
}

func TestPrivilegedCommandsRequireRole(t *testing.T) {
	s := roomWith(t, DefaultRules(), "Ana")
	cmds := []Command{
		{Type: CmdOpenBattlefield, Actor: "p1"},
		{Type: CmdClearRoom, Actor: "p1"},
		{Type: CmdRemovePlayer, Actor: "p1", TargetConnID: "h"},
		{Type: CmdPlaceAsset, Actor: "p1", AssetID: 1},
	}
	for _, cmd := range cmds {
		_, _, err := Apply(s, cmd)
		assert.ErrorIs(t, err, ErrForbidden, cmd.Type)
		assert.Equal(t, "authorization", CodeOf(err).Kind())
	}

	_, _, err := Apply(s, Command{Type: CmdOpenBattlefield, Actor: "ghost"})
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestEndGameResetsBattlefieldAndAssets(t *testing.T) {
	for _, n := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("%d members", n), func(t *testing.T) {
			names := []string{"Ana", "Bo", "Cy"}
			s := roomWith(t, DefaultRules(), names...)
			_, s = mustApply(t, s, Command{Type: CmdPlaceAsset, Actor: "h", AssetID: 1, X: 2, Y: 3})
			_, s = mustApply(t, s, Command{Type: CmdOpenBattlefield, Actor: "h"})
			for i := 0; i < n; i++ {
				_, s = mustApply(t, s, Command{Type: CmdJoinBattlefield, Actor: fmt.Sprintf("p%d", i+1)})
			}
			_, s = mustApply(t, s, Command{Type: CmdStartGame, Actor: "h"})
			if n > 0 {
				_, s = mustApply(t, s, Command{Type: CmdMoveToken, Actor: "p1", X: 2, Y: 3})
				require.True(t, s.Assets[0].Discovered)
			}

			events, next := mustApply(t, s, Command{Type: CmdEndGame, Actor: "h"})
			assert.True(t, containsEvent(events, EvtGameEnded))
			assert.Empty(t, next.Battlefield)
			for _, a := range next.Assets {
				assert.False(t, a.Discovered)
				assert.Nil(t, a.Position)
			}
		})
	}
}

func TestBattlefieldMembership(t *testing.T) {
	s := roomWith(t, DefaultRules(), "Ana", "Bo")

	_, _, err := Apply(s, Command{Type: CmdJoinBattlefield, Actor: "p1"})
	require.ErrorIs(t, err, ErrInvalidState)

	_, s = mustApply(t, s, Command{Type: CmdOpenBattlefield, Actor: "h"})

	_, _, err = Apply(s, Command{Type: CmdJoinBattlefield, Actor: "h"})
	require.ErrorIs(t, err, ErrNotPermitted)
	_, _, err = Apply(s, Command{Type: CmdJoinBattlefield, Actor: "ghost"})
	require.ErrorIs(t, err, ErrNotInRoom)

	events, s := mustApply(t, s, Command{Type: CmdJoinBattlefield, Actor: "p1"})
	require.Len(t, events, 1)
	assert.Equal(t, "Ana", events[0].Identity.Name)

	events, s = mustApply(t, s, Command{Type: CmdJoinBattlefield, Actor: "p1"})
	assert.Empty(t, events)
	assert.Equal(t, []string{"p1"}, s.Battlefield)

	_, _, err = Apply(s, Command{Type: CmdLeaveBattlefield, Actor: "p2"})
	require.ErrorIs(t, err, ErrNotInRoom)

	_, s = mustApply(t, s, Command{Type: CmdLeaveBattlefield, Actor: "p1"})
	assert.Empty(t, s.Battlefield)
}

func TestHostMayEnterWhenNotObserver(t *testing.T) {
	rules := DefaultRules()
	rules.HostObservesOnly = false
	s := roomWith(t, rules)
	_, s = mustApply(t, s, Command{Type: CmdOpenBattlefield, Actor: "h"})
	_, s = mustApply(t, s, Command{Type: CmdJoinBattlefield, Actor: "h"})
	assert.Equal(t, []string{"h"}, s.Battlefield)
}

func TestBattlefieldSubsetInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	s := roomWith(t, DefaultRules(), "Ana", "Bo", "Cy", "Di")
	_, s = mustApply(t, s, Command{Type: CmdOpenBattlefield, Actor: "h"})

	for i := 0; i < 300; i++ {
		conn := fmt.Sprintf("p%d", rng.IntN(4)+1)
		var cmd Command
		switch rng.IntN(5) {
		case 0:
			cmd = Command{Type: CmdJoinBattlefield, Actor: conn}
		case 1:
			cmd = Command{Type: CmdLeaveBattlefield, Actor: conn}
		case 2:
			cmd = Command{Type: CmdLeave, Actor: conn}
		case 3:
			cmd = Command{Type: CmdRemovePlayer, Actor: "h", TargetConnID: conn}
		default:
			cmd = Command{Type: CmdJoin, Identity: player(conn, "N"+conn)}
		}
		_, s, _ = Apply(s, cmd)

		joined := s.ConnIDs()
		for _, b := range s.Battlefield {
			if !slices.Contains(joined, b) {
				t.Fatalf("step %d: %s on battlefield but not joined (%+v)", i, b, s)
			}
		}
	}
}

func TestRemovePlayerDuringBattlefield(t *testing.T) {
	s := roomWith(t, DefaultRules(), "Ana", "Bo")
	_, s = mustApply(t, s, Command{Type: CmdOpenBattlefield, Actor: "h"})
	_, s = mustApply(t, s, Command{Type: CmdJoinBattlefield, Actor: "p1"})

	events, next := mustApply(t, s, Command{Type: CmdRemovePlayer, Actor: "h", TargetName: "ana"})

	require.Len(t, events, 1)
	assert.Equal(t, EvtEvicted, events[0].Type)
	assert.Equal(t, EvictRemoved, events[0].Reason)
	assert.Equal(t, "p1", events[0].Identity.ConnID)
	assert.Empty(t, next.Battlefield)
	assert.NotContains(t, next.ConnIDs(), "p1")

	_, _, err := Apply(next, Command{Type: CmdRemovePlayer, Actor: "h", TargetConnID: "p1"})
	assert.ErrorIs(t, err, ErrUnknownTarget)
	_, _, err = Apply(next, Command{Type: CmdRemovePlayer, Actor: "h", TargetConnID: "h"})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestClearRoomResetsToFreshState(t *testing.T) {
	s := join(t, roomWith(t, DefaultRules(), "Ana", "Bo", "Cy"), Identity{ConnID: "c", Name: "Maker", Role: RoleCreator})
	_, s = mustApply(t, s, Command{Type: CmdPlaceAsset, Actor: "h", AssetID: 2, X: 1, Y: 1})
	_, s = mustApply(t, s, Command{Type: CmdOpenBattlefield, Actor: "h"})
	_, s = mustApply(t, s, Command{Type: CmdJoinBattlefield, Actor: "p1"})
	_, s = mustApply(t, s, Command{Type: CmdJoinBattlefield, Actor: "p2"})
	_, s = mustApply(t, s, Command{Type: CmdStartGame, Actor: "c"})

	events, next := mustApply(t, s, Command{Type: CmdClearRoom, Actor: "c"})

	evicted := 0
	for _, e := range events {
		if e.Type == EvtEvicted {
			assert.Equal(t, EvictCleared, e.Reason)
			evicted++
		}
	}
	assert.Equal(t, 5, evicted)
	assert.True(t, containsEvent(events, EvtRoomCleared))
	assert.Empty(t, cmp.Diff(NewRoomState("R", DefaultRules()), next))
}

func TestPlaceAsset(t *testing.T) {
	s := roomWith(t, DefaultRules(), "Ana")

	cases := []struct {
		name    string
		phase   Phase
		cmd     Command
		wantErr error
	}{
		{name: "lobby", phase: PhaseLobby, cmd: Command{AssetID: 1, X: 0, Y: 0}},
		{name: "battlefield open", phase: PhaseBattlefieldOpen, cmd: Command{AssetID: 3, X: 39, Y: 24}},
		{name: "in progress", phase: PhaseInProgress, cmd: Command{AssetID: 1}, wantErr: ErrInvalidState},
		{name: "unknown asset", phase: PhaseLobby, cmd: Command{AssetID: 99}, wantErr: ErrUnknownAsset},
		{name: "off grid", phase: PhaseLobby, cmd: Command{AssetID: 1, X: 40, Y: 0}, wantErr: ErrMissingFields},
		{name: "negative", phase: PhaseLobby, cmd: Command{AssetID: 1, X: 0, Y: -1}, wantErr: ErrMissingFields},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := s.Clone()
			st.Phase = tc.phase
			cmd := tc.cmd
			cmd.Type, cmd.Actor = CmdPlaceAsset, "h"

			events, next, err := Apply(st, cmd)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, events, 1)
			a := next.Assets[cmd.AssetID-1]
			assert.Equal(t, &Position{X: cmd.X, Y: cmd.Y}, a.Position)
			assert.False(t, a.Discovered)
		})
	}
}

func TestMoveTokenDiscoversAsset(t *testing.T) {
	s := roomWith(t, DefaultRules(), "Ana")
	_, s = mustApply(t, s, Command{Type: CmdPlaceAsset, Actor: "h", AssetID: 2, X: 5, Y: 5})
	_, s = mustApply(t, s, Command{Type: CmdOpenBattlefield, Actor: "h"})

	_, _, err := Apply(s, Command{Type: CmdMoveToken, Actor: "p1", X: 5, Y: 5})
	require.ErrorIs(t, err, ErrNotInRoom)

	_, s = mustApply(t, s, Command{Type: CmdJoinBattlefield, Actor: "p1"})
	_, _, err = Apply(s, Command{Type: CmdMoveToken, Actor: "p1", X: 5, Y: 5})
	require.ErrorIs(t, err, ErrInvalidState)

	_, s = mustApply(t, s, Command{Type: CmdStartGame, Actor: "h"})

	events, moved := mustApply(t, s, Command{Type: CmdMoveToken, Actor: "p1", X: 1, Y: 1})
	require.Len(t, events, 1)
	assert.False(t, events[0].Type.Mutates())
	assert.Empty(t, cmp.Diff(s, moved))

	events, found := mustApply(t, s, Command{Type: CmdMoveToken, Actor: "p1", X: 5, Y: 5})
	require.True(t, containsEvent(events, EvtAssetDiscovered))
	assert.True(t, found.Assets[1].Discovered)

	events, _ = mustApply(t, found, Command{Type: CmdMoveToken, Actor: "p1", X: 5, Y: 5})
	assert.False(t, containsEvent(events, EvtAssetDiscovered))
}

func TestIdempotentLeave(t *testing.T) {
	s := roomWith(t, DefaultRules(), "Ana")

	events, once := mustApply(t, s, Command{Type: CmdLeave, Actor: "p1"})
	require.Len(t, events, 1)

	events, twice := mustApply(t, once, Command{Type: CmdLeave, Actor: "p1"})
	assert.Empty(t, events)
	assert.Empty(t, cmp.Diff(once, twice))

	events, never := mustApply(t, once, Command{Type: CmdLeave, Actor: "nobody"})
	assert.Empty(t, events)
	assert.Empty(t, cmp.Diff(once, never))
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	s := roomWith(t, DefaultRules(), "Ana")
	before := s.Clone()

	_, _ = mustApply(t, s, Command{Type: CmdPlaceAsset, Actor: "h", AssetID: 1, X: 3, Y: 3})
	_, _ = mustApply(t, s, Command{Type: CmdLeave, Actor: "p1"})

	assert.Empty(t, cmp.Diff(before, s))
}

func TestUnsupportedCommand(t *testing.T) {
	_, _, err := Apply(NewRoomState("R", DefaultRules()), Command{Type: "Teleport"})
	if !errors.Is(err, ErrUnsupportedCommand) {
		t.Fatalf("want ErrUnsupportedCommand, got %v", err)
	}
	assert.Equal(t, CodeInternal, CodeOf(err))
}

func TestSnapshotIsDetached(t *testing.T) {
	s := roomWith(t, DefaultRules(), "Ana")
	snap := s.Snapshot()

	snap.Players[0].Name = "changed"
	snap.Host.Name = "changed"

	assert.Equal(t, "Ana", s.Players[0].Name)
	assert.Equal(t, "Samuel", s.Host.Name)
	assert.True(t, snap.HostPresent)
	assert.Equal(t, 10, snap.MaxPlayers)
	assert.NotNil(t, NewRoomState("X", DefaultRules()).Snapshot().BattlefieldMembers)
}

type fixedSource struct{ n int }

func (f fixedSource) IntN(int) int { return f.n }

func TestSidesOf(t *testing.T) {
	cases := []struct {
		kind    string
		want    int
		wantErr bool
	}{
		{kind: "d4", want: 4},
		{kind: "d6", want: 6},
		{kind: "D20", want: 20},
		{kind: " d50 ", want: 50},
		{kind: "d1000", want: 1000},
		{kind: "d0", wantErr: true},
		{kind: "d1001", wantErr: true},
		{kind: "20", wantErr: true},
		{kind: "dx", wantErr: true},
		{kind: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			got, err := SidesOf(tc.kind)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrMissingFields)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
	for _, kind := range StandardDice {
		_, err := SidesOf(kind)
		assert.NoError(t, err)
	}
}

func TestRollBounds(t *testing.T) {
	v, err := Roll(fixedSource{n: 0}, "d6")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = Roll(fixedSource{n: 5}, "d6")
	require.NoError(t, err)
	assert.Equal(t, 6, v)
}

// TestRollFairness runs a chi-square goodness-of-fit check over 10,000 rolls
// per die against the 0.999 quantile. Each die gets its own seeded source.
func TestRollFairness(t *testing.T) {
	cases := []struct {
		sides int
		limit float64
	}{
		{4, 16.27}, {6, 20.52}, {8, 24.32}, {10, 27.88}, {20, 43.82},
	}

	for _, tc := range cases {
		sides, limit := tc.sides, tc.limit
		t.Run(fmt.Sprintf("d%d", sides), func(t *testing.T) {
			src := rand.New(rand.NewPCG(42, uint64(sides)))
			const rolls = 10000
			counts := make([]int, sides+1)
			for i := 0; i < rolls; i++ {
				v, err := Roll(src, fmt.Sprintf("d%d", sides))
				require.NoError(t, err)
				if v < 1 || v > sides {
					t.Fatalf("roll %d out of range [1,%d]", v, sides)
				}
				counts[v]++
			}

			expected := float64(rolls) / float64(sides)
			chi := 0.0
			for face := 1; face <= sides; face++ {
				if counts[face] == 0 {
					t.Fatalf("face %d never rolled", face)
				}
				d := float64(counts[face]) - expected
				chi += d * d / expected
			}
			assert.Less(t, chi, limit)
		})
	}
}

func TestDefaultRandomInRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		v, err := Roll(DefaultRandom(), "d20")
		require.NoError(t, err)
		require.GreaterOrEqual(t, v, 1)
		require.LessOrEqual(t, v, 20)
	}
}
