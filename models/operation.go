package models

// Operation is a signed user-submitted artifact
type Operation struct {
	Content   OperationContent `json:"content"`
	Signature string           `json:"signature"` // base58
}

type OperationContent struct {
	SenderPublicKey string        `json:"sender_public_key"` // base58
	Fee             uint64        `json:"fee"`
	ExpirePeriod    uint64        `json:"expire_period"`
	Op              OperationType `json:"op"`
}

// OperationType holds exactly one operation variant
type OperationType struct {
	Transaction *Transaction `json:"Transaction,omitempty" cbor:",omitempty"`
	RollBuy     *RollBuy     `json:"RollBuy,omitempty" cbor:",omitempty"`
	RollSell    *RollSell    `json:"RollSell,omitempty" cbor:",omitempty"`
}

type Transaction struct {
	RecipientAddress Address `json:"recipient_address"`
	Amount           uint64  `json:"amount"`
}

type RollBuy struct {
	RollCount uint64 `json:"roll_count"`
}

type RollSell struct {
	RollCount uint64 `json:"roll_count"`
}

// ID hashes the canonical content followed by the raw signature
func (o *Operation) ID() (OperationId, error) {
	h, err := hashOf(&o.Content, DecodeBase58(o.Signature))
	return OperationId{h}, err
}

// Endorsement is a signed attestation of a block by a staker
type Endorsement struct {
	Content   EndorsementContent `json:"content"`
	Signature string             `json:"signature"` // base58
}

type EndorsementContent struct {
	SenderPublicKey string  `json:"sender_public_key"`
	Slot            Slot    `json:"slot"`
	Index           uint32  `json:"index"`
	EndorsedBlock   BlockId `json:"endorsed_block"`
}

func (e *Endorsement) ID() (EndorsementId, error) {
	h, err := hashOf(&e.Content, DecodeBase58(e.Signature))
	return EndorsementId{h}, err
}
