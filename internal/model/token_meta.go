package model

// TokenMeta is the ERC20 metadata needed to convert raw amounts to units.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}
