package domain

const (
	MessageLoginRequired = "Please log in to continue."
	MessageGameInactive  = "Game is not active. Please wait for the Super Admin."
	MessageBedtime       = "It's past your bedtime! The OS is locked until morning."
	MessageManualLock    = "Locked by an administrator."
)

type LockReason int

const (
	LockReasonNone LockReason = iota
	LockReasonNoUser
	LockReasonManual
	LockReasonGameInactive
	LockReasonBedtime
)

func (r LockReason) String() string {
	switch r {
	case LockReasonNone:
		return "none"
	case LockReasonNoUser:
		return "no-user"
	case LockReasonManual:
		return "manual"
	case LockReasonGameInactive:
		return "game-inactive"
	case LockReasonBedtime:
		return "bedtime"
	default:
		return "unknown"
	}
}

func (r LockReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

type LockState struct {
	Locked  bool       `json:"locked"`
	Message string     `json:"message,omitempty"`
	Reason  LockReason `json:"reason"`
}

var Unlocked = LockState{}

func Locked(reason LockReason, message string) LockState {
	return LockState{Locked: true, Message: message, Reason: reason}
}
