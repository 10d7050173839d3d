package models

import (
	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Core deterministic encoding keeps content hashes stable across nodes.
	// Nil and empty containers must hash the same.
	opts := cbor.CoreDetEncOptions()
	opts.NilContainers = cbor.NilContainerAsEmpty
	encMode, err = opts.EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// EncodeCBOR encodes v in canonical CBOR
func EncodeCBOR(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

// DecodeCBOR decodes data produced by EncodeCBOR into v
func DecodeCBOR(data []byte, v interface{}) error {
	return decMode.Unmarshal(data, v)
}

// hashOf hashes the canonical encoding of v followed by suffix
func hashOf(v interface{}, suffix []byte) (Hash, error) {
	data, err := EncodeCBOR(v)
	if err != nil {
		return Hash{}, err
	}
	return NewHash(append(data, suffix...)), nil
}
