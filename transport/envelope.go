// Package transport implements the wallet-coordinator wire protocol: text
// frames carrying a tagged JSON envelope over a single bidirectional
// websocket connection, with a reader/writer pump pair per connection.
package transport

import (
	"encoding/json"
	"fmt"

	"github.com/synnergy-labs/rollupnet/core"
)

// Tag identifies the payload carried by an Envelope.
type Tag string

const (
	TagAddConnection               Tag = "AddConnection"
	TagSendTransactionBatch        Tag = "SendTransactionBatch"
	TagSendTransactionBatchSig     Tag = "SendTransactionBatchSignature"
	TagSendBatchToReceivers        Tag = "SendBatchToReceivers"
	TagSendTransactionInclusion    Tag = "SendTransactionInclusionProof"
	TagReceiveTransaction          Tag = "ReceiveTransaction"
)

// Envelope is the wire-level tagged union. Exactly one of the payload
// fields is populated, selected by Tag.
type Envelope struct {
	Tag Tag `json:"tag"`

	AddConnection           *AddConnectionPayload           `json:"add_connection,omitempty"`
	SendTransactionBatch    *SendTransactionBatchPayload    `json:"send_transaction_batch,omitempty"`
	SendTransactionBatchSig *SendTransactionBatchSigPayload `json:"send_transaction_batch_signature,omitempty"`
	SendBatchToReceivers    *SendBatchToReceiversPayload    `json:"send_batch_to_receivers,omitempty"`
	InclusionProof          *InclusionProofPayload          `json:"send_transaction_inclusion_proof,omitempty"`
	ReceiveTransaction      *ReceiveTransactionPayload       `json:"receive_transaction,omitempty"`
}

// AddConnectionPayload is the mandatory first client-originated frame.
type AddConnectionPayload struct {
	PublicKey core.PublicKey `json:"public_key"`
}

// SendTransactionBatchPayload submits a batch to the current round.
type SendTransactionBatchPayload struct {
	Batch core.TransactionBatch `json:"batch"`
}

// SendTransactionBatchSigPayload returns a signature over an inclusion
// proof's root.
type SendTransactionBatchSigPayload struct {
	PublicKey core.PublicKey  `json:"public_key"`
	Signature core.Signature  `json:"signature"`
}

// SendBatchToReceiversPayload asks the coordinator to forward a committed
// transfer to its recipients.
type SendBatchToReceiversPayload struct {
	Proof        core.TransactionProof `json:"proof"`
	BalanceProof core.BalanceProof    `json:"balance_proof"`
}

// InclusionProofPayload is pushed by the coordinator at round start to
// every sender who submitted a batch.
type InclusionProofPayload struct {
	Proof core.TransactionProof `json:"proof"`
}

// ReceiveTransactionPayload is forwarded to a batch's recipients.
type ReceiveTransactionPayload struct {
	Proof        core.TransactionProof `json:"proof"`
	BalanceProof core.BalanceProof    `json:"balance_proof"`
}

func NewAddConnection(pk core.PublicKey) Envelope {
	return Envelope{Tag: TagAddConnection, AddConnection: &AddConnectionPayload{PublicKey: pk}}
}

func NewSendTransactionBatch(batch core.TransactionBatch) Envelope {
	return Envelope{Tag: TagSendTransactionBatch, SendTransactionBatch: &SendTransactionBatchPayload{Batch: batch}}
}

func NewSendTransactionBatchSignature(pk core.PublicKey, sig core.Signature) Envelope {
	return Envelope{Tag: TagSendTransactionBatchSig, SendTransactionBatchSig: &SendTransactionBatchSigPayload{PublicKey: pk, Signature: sig}}
}

func NewSendBatchToReceivers(proof core.TransactionProof, bp core.BalanceProof) Envelope {
	return Envelope{Tag: TagSendBatchToReceivers, SendBatchToReceivers: &SendBatchToReceiversPayload{Proof: proof, BalanceProof: bp}}
}

func NewSendTransactionInclusionProof(proof core.TransactionProof) Envelope {
	return Envelope{Tag: TagSendTransactionInclusion, InclusionProof: &InclusionProofPayload{Proof: proof}}
}

func NewReceiveTransaction(proof core.TransactionProof, bp core.BalanceProof) Envelope {
	return Envelope{Tag: TagReceiveTransaction, ReceiveTransaction: &ReceiveTransactionPayload{Proof: proof, BalanceProof: bp}}
}

// ErrBadMessage is returned by Decode when the frame is not a well-formed
// envelope of a known tag — the wire-level BadMessage condition of §7.
var ErrBadMessage = fmt.Errorf("transport: malformed envelope")

// Decode parses a text frame into an Envelope, validating that the
// payload matching Tag is present.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	present := map[Tag]bool{
		TagAddConnection:            env.AddConnection != nil,
		TagSendTransactionBatch:     env.SendTransactionBatch != nil,
		TagSendTransactionBatchSig:  env.SendTransactionBatchSig != nil,
		TagSendBatchToReceivers:     env.SendBatchToReceivers != nil,
		TagSendTransactionInclusion: env.InclusionProof != nil,
		TagReceiveTransaction:       env.ReceiveTransaction != nil,
	}
	ok, known := present[env.Tag]
	if !known || !ok {
		return Envelope{}, ErrBadMessage
	}
	return env, nil
}

// Encode serialises env for a text frame.
func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}
