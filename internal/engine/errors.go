package engine

import (
	"errors"
	"fmt"
)

// Code is the stable, client-facing identifier of an expected failure.
type Code string

const (
	CodeRoomFull             Code = "RoomFull"
	CodeNameTaken            Code = "NameTaken"
	CodeHostSlotTaken        Code = "HostSlotTaken"
	CodeNotAuthorizedForHost Code = "NotAuthorizedForHost"
	CodeHostRequiredFirst    Code = "HostRequiredFirst"
	CodeMissingFields        Code = "MissingFields"
	CodeForbidden            Code = "Forbidden"
	CodeInvalidState         Code = "InvalidState"
	CodeNotInRoom            Code = "NotInRoom"
	CodeNotPermitted         Code = "NotPermitted"
	CodeUnknownAsset         Code = "UnknownAsset"
	CodeUnknownTarget        Code = "UnknownTarget"
	CodeAlreadyBound         Code = "AlreadyBound"
	CodeRoomClosed           Code = "RoomClosed"
	CodeInternal             Code = "Internal"
)

// AdmissionReasons is the closed set of codes a join can be rejected with.
var AdmissionReasons = []Code{
	CodeHostSlotTaken,
	CodeNotAuthorizedForHost,
	CodeHostRequiredFirst,
	CodeRoomFull,
	CodeNameTaken,
	CodeMissingFields,
}

// Kind groups codes into the error taxonomy.
func (c Code) Kind() string {
	switch c {
	case CodeRoomFull, CodeNameTaken, CodeHostSlotTaken, CodeNotAuthorizedForHost, CodeHostRequiredFirst, CodeMissingFields:
		return "admission"
	case CodeForbidden, CodeNotPermitted:
		return "authorization"
	case CodeInvalidState, CodeAlreadyBound, CodeRoomClosed:
		return "state"
	case CodeNotInRoom, CodeUnknownAsset, CodeUnknownTarget:
		return "notFound"
	default:
		return "internal"
	}
}

type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is matches any *Error with the same code, so detailed errors still satisfy
// errors.Is against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrRoomFull             = &Error{Code: CodeRoomFull, Message: "room is full"}
	ErrNameTaken            = &Error{Code: CodeNameTaken, Message: "display name already in use"}
	ErrHostSlotTaken        = &Error{Code: CodeHostSlotTaken, Message: "seat already occupied"}
	ErrNotAuthorizedForHost = &Error{Code: CodeNotAuthorizedForHost, Message: "display name may not take the host seat"}
	ErrHostRequiredFirst    = &Error{Code: CodeHostRequiredFirst, Message: "a host must join first"}
	ErrMissingFields        = &Error{Code: CodeMissingFields, Message: "missing or invalid fields"}
	ErrForbidden            = &Error{Code: CodeForbidden, Message: "role does not permit this action"}
	ErrInvalidState         = &Error{Code: CodeInvalidState, Message: "action not legal in current phase"}
	ErrNotInRoom            = &Error{Code: CodeNotInRoom, Message: "connection is not a member of this room"}
	ErrNotPermitted         = &Error{Code: CodeNotPermitted, Message: "role may not enter the battlefield"}
	ErrUnknownAsset         = &Error{Code: CodeUnknownAsset, Message: "unknown asset"}
	ErrUnknownTarget        = &Error{Code: CodeUnknownTarget, Message: "unknown target"}
	ErrAlreadyBound         = &Error{Code: CodeAlreadyBound, Message: "connection already joined another room"}
	ErrRoomClosed           = &Error{Code: CodeRoomClosed, Message: "room was cleared"}
)

var ErrUnsupportedCommand = errors.New("unsupported command")

var errorsByCode = map[Code]*Error{
	CodeRoomFull:             ErrRoomFull,
	CodeNameTaken:            ErrNameTaken,
	CodeHostSlotTaken:        ErrHostSlotTaken,
	CodeNotAuthorizedForHost: ErrNotAuthorizedForHost,
	CodeHostRequiredFirst:    ErrHostRequiredFirst,
	CodeMissingFields:        ErrMissingFields,
}

// ErrorFor returns the sentinel for an admission code.
func ErrorFor(c Code) error {
	if err, ok := errorsByCode[c]; ok {
		return err
	}
	return &Error{Code: c, Message: string(c)}
}

// CodeOf extracts the code of err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func invalidState(format string, args ...any) error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

func missingFields(format string, args ...any) error {
	return &Error{Code: CodeMissingFields, Message: fmt.Sprintf(format, args...)}
}
