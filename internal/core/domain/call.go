package domain

import "time"

type CallStatus string

const (
	CallPending  CallStatus = "pending"
	CallAnswered CallStatus = "answered"
	CallDeclined CallStatus = "declined"
	CallEnded    CallStatus = "ended"
)

// Terminal statuses are never left; a new call needs a new record.
func (s CallStatus) Terminal() bool {
	return s == CallDeclined || s == CallEnded
}

// CanMove reports whether the party on side may take a call from s to next.
// Only the callee answers; either party may end or decline a live call.
func (s CallStatus) CanMove(next CallStatus, side CallSide) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case s:
		return true
	case CallAnswered:
		return s == CallPending && side == CalleeSide
	case CallEnded, CallDeclined:
		return true
	}
	return false
}

type Call struct {
	ID         CallID              `json:"id,omitempty"`
	CallerID   UserID              `json:"callerId"`
	CalleeID   UserID              `json:"calleeId"`
	CallerName string              `json:"callerName"`
	Status     CallStatus          `json:"status"`
	Offer      *SessionDescription `json:"offer,omitempty"`
	Answer     *SessionDescription `json:"answer,omitempty"`
	CreatedAt  *time.Time          `json:"createdAt,omitempty"`
	AnsweredAt *time.Time          `json:"answeredAt,omitempty"`
	EndedAt    *time.Time          `json:"endedAt,omitempty"`
}

func NewCall(caller User, calleeID UserID) Call {
	return Call{
		CallerID:   caller.ID,
		CalleeID:   calleeID,
		CallerName: caller.Name,
		Status:     CallPending,
	}
}

// CallSide names which participant a candidate collection belongs to.
type CallSide string

const (
	CallerSide CallSide = "caller"
	CalleeSide CallSide = "callee"
)

func (s CallSide) Opposite() CallSide {
	if s == CallerSide {
		return CalleeSide
	}
	return CallerSide
}

func (s CallSide) CandidatesCollection() string {
	if s == CallerSide {
		return "callerCandidates"
	}
	return "calleeCandidates"
}
