package notifier

type NotifyRequest struct {
	Txn []*Transaction `json:"txn"`
}

type NotifyResponse struct {
	Success bool `json:"success"`
}

// Transaction is one send outcome as the callback endpoint receives it.
type Transaction struct {
	DedupKey  string `json:"dedup_key"`
	RequestId string `json:"request_id,omitempty"`
	ChainId   uint64 `json:"chain_id"`
	ToAddress string `json:"to_address"`
	Hash      string `json:"hash,omitempty"`
	Nonce     uint64 `json:"nonce"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	Reason    string `json:"reason,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
