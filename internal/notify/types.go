package notify

import (
	"github.com/multivault/ledger/internal/domain"
)

// Notification is the payload POSTed to a receiver's registered hook after
// the optimistic transfer of a transfer-call has committed.
type Notification struct {
	// SagaID identifies the transfer-call; receivers echo it nowhere, it is
	// bound into the signature for replay protection
	SagaID string `json:"saga_id"`
	// Sender is the principal that initiated the transfer-call
	Sender string `json:"sender"`
	// PreviousOwners lists, per token, the principal the funds were debited
	// from
	PreviousOwners []string `json:"previous_owners"`
	// TokenIDs lists the transferred tokens, in call order
	TokenIDs []string `json:"token_ids"`
	// Amounts lists the transferred amounts, aligned with TokenIDs
	Amounts []string `json:"amounts"`
	// Message is the sender's free-form message
	Message string `json:"message,omitempty"`
}

// Reply is the hook's answer: per token, how much of the transferred amount
// the receiver did not use and wants returned.
type Reply struct {
	Unused []string `json:"unused"`
}

// Outcome is the classified result of one notification attempt, recorded on
// the saga and consumed by the resolution step.
type Outcome struct {
	Status domain.NotifyStatus `json:"status"`
	// Unused carries the hook's reply values, clamped later against the
	// sent amounts. Only meaningful when Status is ok.
	Unused []string `json:"unused,omitempty"`
	// Detail holds the transport error or HTTP status for diagnostics.
	Detail string `json:"detail,omitempty"`
}

// ClassifyReply turns a raw hook reply body into an Outcome following the
// conservative defaults: a reply that cannot be parsed into non-negative
// amounts counts as fully used, never as an error.
func ClassifyReply(body []byte, parse func([]byte, interface{}) error) Outcome {
	var reply Reply
	if err := parse(body, &reply); err != nil {
		return Outcome{Status: domain.NotifyStatusMalformed, Detail: err.Error()}
	}
	for _, v := range reply.Unused {
		if _, err := domain.ParseAmount(v); err != nil {
			return Outcome{Status: domain.NotifyStatusMalformed, Detail: "bad unused amount " + v}
		}
	}
	return Outcome{Status: domain.NotifyStatusOK, Unused: reply.Unused}
}
