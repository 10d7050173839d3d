package models

// Clique is a maximal set of mutually compatible non-final blocks
type Clique struct {
	BlockIds      []BlockId `json:"block_ids"`
	Fitness       uint64    `json:"fitness"`
	IsBlockclique bool      `json:"is_blockclique"`
}

// FinalBlock describes the last final block of one thread
type FinalBlock struct {
	Thread    uint8   `json:"thread"`
	ID        BlockId `json:"id"`
	Slot      Slot    `json:"slot"`
	Timestamp uint64  `json:"timestamp"`
}

type ConsensusConfig struct {
	GenesisTimestamp uint64 `json:"genesis_timestamp"`
	SlotDuration     uint64 `json:"slot_duration"`
	ThreadCount      uint8  `json:"thread_count"`
	PeriodsPerCycle  uint64 `json:"periods_per_cycle"`
}

// NodeStatus is computed from a single graph snapshot
type NodeStatus struct {
	CurrentTime     uint64          `json:"current_time"`
	CurrentCycle    uint64          `json:"current_cycle"`
	NextSlot        *Slot           `json:"next_slot"`
	LastFinalBlocks []FinalBlock    `json:"last_final_blocks"`
	BestParents     []BlockId       `json:"best_parents"`
	CliqueCount     int             `json:"clique_count"`
	ConnectedPeers  int             `json:"connected_peers"`
	SnapshotVersion uint64          `json:"snapshot_version"`
	Config          ConsensusConfig `json:"config"`
}

type BlockInfo struct {
	ID              BlockId `json:"id"`
	IsFinal         bool    `json:"is_final"`
	IsStale         bool    `json:"is_stale"`
	IsInBlockclique bool    `json:"is_in_blockclique"`
	Cliques         []int   `json:"cliques"`
	Timestamp       uint64  `json:"timestamp"`
	Block           Block   `json:"block"`
}

type BlockSummary struct {
	ID              BlockId   `json:"id"`
	IsFinal         bool      `json:"is_final"`
	IsStale         bool      `json:"is_stale"`
	IsInBlockclique bool      `json:"is_in_blockclique"`
	Slot            Slot      `json:"slot"`
	Timestamp       uint64    `json:"timestamp"`
	Creator         string    `json:"creator"`
	Parents         []BlockId `json:"parents"`
}

type OperationInfo struct {
	ID        OperationId `json:"id"`
	InPool    bool        `json:"in_pool"`
	InBlocks  []BlockId   `json:"in_blocks"`
	IsFinal   bool        `json:"is_final"`
	Operation Operation   `json:"operation"`
}

type EndorsementInfo struct {
	ID          EndorsementId `json:"id"`
	InPool      bool          `json:"in_pool"`
	InBlocks    []BlockId     `json:"in_blocks"`
	IsFinal     bool          `json:"is_final"`
	Endorsement Endorsement   `json:"endorsement"`
}
