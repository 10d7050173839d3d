package models

// Block is a header plus the operations it carries
type Block struct {
	Header     BlockHeader `json:"header"`
	Operations []Operation `json:"operations"`
}

type BlockHeader struct {
	Content   BlockHeaderContent `json:"content"`
	Signature string             `json:"signature"`
}

type BlockHeaderContent struct {
	Creator             string        `json:"creator"` // base58 public key
	Slot                Slot          `json:"slot"`
	Parents             []BlockId     `json:"parents"` // one per thread, empty for genesis blocks
	OperationMerkleRoot Hash          `json:"operation_merkle_root"`
	Endorsements        []Endorsement `json:"endorsements"`
}

// ID hashes the canonical header
func (b *Block) ID() (BlockId, error) {
	h, err := hashOf(&b.Header, nil)
	return BlockId{h}, err
}

// Fitness is the weight a block contributes to a clique
func (b *Block) Fitness() uint64 {
	return 1 + uint64(len(b.Header.Content.Endorsements))
}

// OperationMerkleRoot hashes the concatenated ids of ops
func OperationMerkleRoot(ops []Operation) (Hash, error) {
	buf := make([]byte, 0, len(ops)*HashSize)
	for i := range ops {
		id, err := ops[i].ID()
		if err != nil {
			return Hash{}, err
		}
		buf = append(buf, id.Bytes()...)
	}
	return NewHash(buf), nil
}
