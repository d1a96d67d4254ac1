package rules

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an action was rejected.
type ErrorKind uint8

const (
	KindValidation ErrorKind = iota // Malformed or missing fields
	KindRule                        // Well-formed but illegal in context
	KindInternal                    // Unexpected failure during resolution
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRule:
		return "rule"
	default:
		return "internal"
	}
}

// Error is the failure reported for a rejected action. Msg is safe to show to players.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }

// Rule violations. Match with errors.Is.
var (
	ErrGameNotActive        = errors.New("game not active")
	ErrNotYourTurn          = errors.New("not your turn")
	ErrUnitNotFound         = errors.New("unit not found")
	ErrCityNotFound         = errors.New("city not found")
	ErrNotOwner             = errors.New("not owned by player")
	ErrNoMovement           = errors.New("no movement left")
	ErrInsufficientMovement = errors.New("insufficient movement")
	ErrNotAdjacent          = errors.New("target not adjacent")
	ErrImpassable           = errors.New("terrain impassable")
	ErrOccupied             = errors.New("tile occupied")
	ErrFriendlyTarget       = errors.New("cannot attack own unit")
	ErrNotMilitary          = errors.New("unit cannot attack")
	ErrNotSettler           = errors.New("unit is not a settler")
	ErrCityExists           = errors.New("tile already has a city")
	ErrTooCloseToCity       = errors.New("too close to an existing city")
	ErrNotWorker            = errors.New("unit is not a worker")
	ErrNotOnTile            = errors.New("unit not on target tile")
	ErrAlreadyImproved      = errors.New("tile already improved")
	ErrBadImprovement       = errors.New("improvement not valid here")
	ErrUnknownTarget        = errors.New("unknown production target")
	ErrAlreadyBuilt         = errors.New("building already constructed")
	ErrLocked               = errors.New("required technology not researched")
	ErrUnknownTech          = errors.New("unknown technology")
	ErrAlreadyResearched    = errors.New("technology already researched")
)

// ErrMalformed is wrapped by every validation error.
var ErrMalformed = errors.New("malformed action")

func violation(sentinel error, format string, args ...any) *Error {
	return &Error{Kind: KindRule, Msg: fmt.Sprintf(format, args...), Err: sentinel}
}

func invalid(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...), Err: ErrMalformed}
}

func internal(err error) *Error {
	return &Error{Kind: KindInternal, Msg: "internal error", Err: err}
}

// KindOf returns the kind of a rejection error; non-rules errors are internal.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}
