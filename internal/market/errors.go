package market

import (
	"errors"

	"github.com/atmx/amm-market/internal/amm"
	"github.com/atmx/amm-market/internal/promo"
	"github.com/atmx/amm-market/internal/risk"
)

var (
	// ErrInvalidAmount is the pool's sentinel so errors.Is matches
	// rejections from either layer.
	ErrInvalidAmount = amm.ErrInvalidAmount

	ErrInsufficientBalance = errors.New("market: insufficient balance")
	ErrUnknownActor        = errors.New("market: unknown actor")
	ErrActorExists         = errors.New("market: actor id already taken")
)

// Reason codes reported to clients and used as metric labels.
const (
	ReasonInvalidAmount       = "INVALID_AMOUNT"
	ReasonInsufficientBalance = "INSUFFICIENT_BALANCE"
	ReasonUnknownActor        = "UNKNOWN_ACTOR"
	ReasonActorExists         = "ACTOR_EXISTS"
	ReasonPoolDepletion       = "POOL_DEPLETION"
	ReasonConsistencyFault    = "CONSISTENCY_FAULT"
	ReasonInvalidCode         = "INVALID_CODE"
	ReasonTradeTooLarge       = "TRADE_TOO_LARGE"
	ReasonInternal            = "INTERNAL"
)

// Reason maps an error from the execute or credit paths to a stable code.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidAmount):
		return ReasonInvalidAmount
	case errors.Is(err, ErrInsufficientBalance):
		return ReasonInsufficientBalance
	case errors.Is(err, ErrUnknownActor):
		return ReasonUnknownActor
	case errors.Is(err, ErrActorExists):
		return ReasonActorExists
	case errors.Is(err, amm.ErrPoolDepletion):
		return ReasonPoolDepletion
	case errors.Is(err, amm.ErrInconsistentState), errors.Is(err, amm.ErrDivisionByZero):
		return ReasonConsistencyFault
	case errors.Is(err, promo.ErrInvalidCode):
		return ReasonInvalidCode
	case errors.Is(err, risk.ErrTradeTooLarge):
		return ReasonTradeTooLarge
	default:
		return ReasonInternal
	}
}

// IsConsistencyFault reports whether err means the pool's bookkeeping is
// broken, as opposed to a rejected request.
func IsConsistencyFault(err error) bool {
	return Reason(err) == ReasonConsistencyFault
}
