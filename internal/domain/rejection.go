package domain

import "errors"

// RejectionReason classifies why a bid attempt was turned away. Every
// reason is an expected outcome of racing bidders, not an operational
// error; callers relay it to the requesting session only.
type RejectionReason string

const (
	RejectNotFound        RejectionReason = "NotFound"
	RejectAuctionClosed   RejectionReason = "AuctionClosed"
	RejectNotBiddable     RejectionReason = "NotBiddable"
	RejectInvalidAmount   RejectionReason = "InvalidAmount"
	RejectBidTooLow       RejectionReason = "BidTooLow"
	RejectUnauthenticated RejectionReason = "Unauthenticated"
	RejectTimeout         RejectionReason = "Timeout"
)

// Rejection is the error returned when a bid attempt fails a
// precondition. It is terminal for that attempt and never retried by
// the core.
type Rejection struct {
	Reason RejectionReason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return "bid rejected: " + string(r.Reason)
	}
	return "bid rejected: " + string(r.Reason) + ": " + r.Detail
}

// Reject builds a Rejection error.
func Reject(reason RejectionReason, detail string) *Rejection {
	return &Rejection{Reason: reason, Detail: detail}
}

// AsRejection unwraps err into a Rejection, or nil if err is a real
// (operational) failure such as an unreachable store.
func AsRejection(err error) *Rejection {
	var r *Rejection
	if errors.As(err, &r) {
		return r
	}
	return nil
}

// ErrAuctionNotFound is returned by stores when no record exists for
// the requested auction id.
var ErrAuctionNotFound = errors.New("auction not found")
