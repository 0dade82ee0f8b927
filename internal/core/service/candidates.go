package service

import (
	"context"
	"fmt"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
)

// candidateRelay moves ICE candidates between a peer connection and the
// candidate collections of one call. Local candidates wait for the local
// description and remote ones for the remote description; both queues are
// flushed in order and nothing is dropped.
type candidateRelay struct {
	store  port.DocumentStore
	pc     port.PeerConnection
	callID domain.CallID
	side   domain.CallSide

	localReady  bool
	outbox      []domain.ICECandidate
	remoteReady bool
	inbox       []domain.ICECandidate

	reported bool
}

func newCandidateRelay(store port.DocumentStore, pc port.PeerConnection, callID domain.CallID, side domain.CallSide) *candidateRelay {
	return &candidateRelay{
		store:  store,
		pc:     pc,
		callID: callID,
		side:   side,
	}
}

func (r *candidateRelay) local(ctx context.Context, c domain.ICECandidate) error {
	if !r.localReady {
		r.outbox = append(r.outbox, c)
		return nil
	}
	return r.publish(ctx, c)
}

func (r *candidateRelay) localDescriptionSet(ctx context.Context) error {
	r.localReady = true
	outbox := r.outbox
	r.outbox = nil

	var first error
	for _, c := range outbox {
		if err := r.publish(ctx, c); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (r *candidateRelay) publish(ctx context.Context, c domain.ICECandidate) error {
	data, err := port.Encode(c)
	if err != nil {
		return err
	}
	if _, err := r.store.Add(ctx, domain.CandidatesPath(r.callID, r.side), data); err != nil {
		return fmt.Errorf("%w: publish candidate: %w", domain.ErrSignaling, err)
	}
	return nil
}

func (r *candidateRelay) remote(c domain.ICECandidate) error {
	if !r.remoteReady {
		r.inbox = append(r.inbox, c)
		return nil
	}
	return r.pc.AddICECandidate(c)
}

func (r *candidateRelay) remoteDescriptionSet() error {
	r.remoteReady = true
	inbox := r.inbox
	r.inbox = nil

	var first error
	for _, c := range inbox {
		if err := r.pc.AddICECandidate(c); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// firstFailure reports true only for the first relay failure of a call.
func (r *candidateRelay) firstFailure() bool {
	if r.reported {
		return false
	}
	r.reported = true
	return true
}
