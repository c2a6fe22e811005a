package model

// MintEvent is a decoded pool Mint log.
type MintEvent struct {
	Pool      string `json:"pool"`
	Block     uint64 `json:"block"`
	TxHash    string `json:"tx_hash"`
	Sender    string `json:"sender"`
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}
