package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/DoyleJ11/battlefield-lobby/internal/engine"
)

// Request is a decoded and validated client event.
type Request interface {
	EventType() string
}

type IdentityRequest struct {
	DisplayName string `json:"displayName" validate:"required,notblank,max=32"`
	Role        string `json:"role" validate:"required,oneof=creator host player"`
}

type JoinRoom struct {
	Room     string          `json:"room" validate:"required,notblank,max=64"`
	Identity IdentityRequest `json:"identity" validate:"required"`
}

// Action covers the events that carry no payload beyond their type.
type Action struct {
	Type string `json:"type"`
}

type RollDice struct {
	DieKind     string `json:"dieKind" validate:"required,max=8"`
	DisplayName string `json:"displayName,omitempty" validate:"max=32"`
}

type RemovePlayer struct {
	TargetConnectionID string `json:"targetConnectionId" validate:"required_without=TargetDisplayName"`
	TargetDisplayName  string `json:"targetDisplayName" validate:"required_without=TargetConnectionID,max=32"`
}

type PlaceAsset struct {
	AssetID int  `json:"assetId" validate:"required,gt=0"`
	X       *int `json:"x" validate:"required,gte=0"`
	Y       *int `json:"y" validate:"required,gte=0"`
}

type MoveToken struct {
	X *int `json:"x" validate:"required,gte=0"`
	Y *int `json:"y" validate:"required,gte=0"`
}

func (JoinRoom) EventType() string     { return EvtJoinRoom }
func (a Action) EventType() string     { return a.Type }
func (RollDice) EventType() string     { return EvtRollDice }
func (RemovePlayer) EventType() string { return EvtRemovePlayer }
func (PlaceAsset) EventType() string   { return EvtPlaceAsset }
func (MoveToken) EventType() string    { return EvtMoveToken }

var (
	ErrMalformed   = &engine.Error{Code: engine.CodeMissingFields, Message: "malformed message"}
	ErrUnknownType = &engine.Error{Code: engine.CodeMissingFields, Message: "unknown event type"}
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Decode parses one inbound frame. Every failure is a MissingFields error so
// nothing malformed ever reaches a room.
func Decode(data []byte) (Request, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrMalformed
	}

	var req Request
	switch env.Type {
	case EvtJoinRoom:
		req = &JoinRoom{}
	case EvtRollDice:
		req = &RollDice{}
	case EvtRemovePlayer:
		req = &RemovePlayer{}
	case EvtPlaceAsset:
		req = &PlaceAsset{}
	case EvtMoveToken:
		req = &MoveToken{}
	case evtJoinBattleFieldAlias:
		return Action{Type: EvtJoinBattlefield}, nil
	case EvtLeaveRoom, EvtOpenBattlefield, EvtStartGame, EvtEndGame, EvtJoinBattlefield, EvtLeaveBattlefield, EvtClearRoom:
		return Action{Type: env.Type}, nil
	case "":
		return nil, &engine.Error{Code: engine.CodeMissingFields, Message: "type is required"}
	default:
		return nil, ErrUnknownType
	}

	if err := json.Unmarshal(data, req); err != nil {
		return nil, ErrMalformed
	}
	if err := Validate(req); err != nil {
		return nil, err
	}
	return deref(req), nil
}

// Validate checks struct tags and reports the offending fields by their
// wire names.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate request: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fieldPath(fe.Namespace()), fe.Tag()))
	}
	return &engine.Error{Code: engine.CodeMissingFields, Message: "invalid fields: " + strings.Join(fields, ", ")}
}

// fieldPath drops the leading struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func deref(req Request) Request {
	switch r := req.(type) {
	case *JoinRoom:
		return *r
	case *RollDice:
		return *r
	case *RemovePlayer:
		return *r
	case *PlaceAsset:
		return *r
	case *MoveToken:
		return *r
	}
	return req
}
