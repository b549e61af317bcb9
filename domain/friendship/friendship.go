package friendship

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a friendship edge. There is no stored
// Rejected state: rejecting a pending edge deletes it.
type State string

const (
	StatePending  State = "PENDING"
	StateAccepted State = "ACCEPTED"
)

var (
	ErrSelfFriendship = errors.New("cannot befriend yourself")
	ErrNotParticipant = errors.New("user is not a participant of this edge")
	ErrNotPending     = errors.New("friendship is not pending")
	ErrReceiverOnly   = errors.New("only the receiver can respond to a request")
)

// Edge is a single friendship record between two users. Direction (sender vs
// receiver) matters while pending; once accepted the edge is queried
// symmetrically. At most one edge may exist per unordered pair of users; the
// store enforces that with PairKey.
type Edge struct {
	ID        string
	Sender    string
	Receiver  string
	State     State
	CreatedAt time.Time
}

// NewEdge creates a pending friendship request from sender to receiver.
func NewEdge(sender, receiver string) (*Edge, error) {
	if sender == "" || receiver == "" {
		return nil, errors.New("sender and receiver required")
	}
	if sender == receiver {
		return nil, ErrSelfFriendship
	}
	return &Edge{
		ID:        uuid.New().String(),
		Sender:    sender,
		Receiver:  receiver,
		State:     StatePending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// OtherParty returns the endpoint of the edge that is not the given user.
func (e *Edge) OtherParty(username string) (string, error) {
	switch username {
	case e.Sender:
		return e.Receiver, nil
	case e.Receiver:
		return e.Sender, nil
	default:
		return "", ErrNotParticipant
	}
}

// Accept transitions a pending edge to accepted. Only the receiver may
// respond to a request.
func (e *Edge) Accept(respondent string) error {
	if e.State != StatePending {
		return ErrNotPending
	}
	if respondent != e.Receiver {
		return ErrReceiverOnly
	}
	e.State = StateAccepted
	return nil
}

// PairKey returns the two usernames in a canonical order. Stores key edges by
// this pair to enforce the one-edge-per-pair invariant.
func PairKey(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}
