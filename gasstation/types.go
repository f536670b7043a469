package gasstation

// Tier is one priority level of a gas-station response. Values are in gwei
// and may carry fractional digits.
type Tier struct {
	MaxPriorityFee *float64 `json:"maxPriorityFee"`
	MaxFee         *float64 `json:"maxFee"`
}

// Complete reports whether both fee fields were present.
func (t *Tier) Complete() bool {
	return t != nil && t.MaxFee != nil && t.MaxPriorityFee != nil
}

type Suggestion struct {
	SafeLow          *Tier    `json:"safeLow"`
	Standard         *Tier    `json:"standard"`
	Fast             *Tier    `json:"fast"`
	EstimatedBaseFee *float64 `json:"estimatedBaseFee"`
	BlockTime        int64    `json:"blockTime"`
	BlockNumber      uint64   `json:"blockNumber"`
}
