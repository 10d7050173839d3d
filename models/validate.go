package models

import (
	"errors"
	"fmt"
)

var ErrInvalidOperation = errors.New("invalid operation")

func invalidOp(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, fmt.Sprintf(format, args...))
}

// Validate performs the structural checks that do not need ledger state.
// Signatures are only checked for shape.
func (o *Operation) Validate() error {
	if len(DecodeBase58(o.Content.SenderPublicKey)) == 0 {
		return invalidOp("sender public key is not base58")
	}
	if len(DecodeBase58(o.Signature)) == 0 {
		return invalidOp("signature is not base58")
	}
	if o.Content.ExpirePeriod == 0 {
		return invalidOp("expire period must be positive")
	}

	variants := 0
	if tx := o.Content.Op.Transaction; tx != nil {
		variants++
		if err := tx.RecipientAddress.Validate(); err != nil {
			return invalidOp("recipient: %v", err)
		}
		if tx.Amount == 0 {
			return invalidOp("transaction amount must be positive")
		}
	}
	if rb := o.Content.Op.RollBuy; rb != nil {
		variants++
		if rb.RollCount == 0 {
			return invalidOp("roll count must be positive")
		}
	}
	if rs := o.Content.Op.RollSell; rs != nil {
		variants++
		if rs.RollCount == 0 {
			return invalidOp("roll count must be positive")
		}
	}
	if variants != 1 {
		return invalidOp("expected exactly one operation type, got %d", variants)
	}
	return nil
}

// Validate checks the shape of an endorsement
func (e *Endorsement) Validate() error {
	if len(DecodeBase58(e.Content.SenderPublicKey)) == 0 {
		return errors.New("invalid endorsement: sender public key is not base58")
	}
	if len(DecodeBase58(e.Signature)) == 0 {
		return errors.New("invalid endorsement: signature is not base58")
	}
	if e.Content.EndorsedBlock.IsZero() {
		return errors.New("invalid endorsement: missing endorsed block")
	}
	return nil
}
