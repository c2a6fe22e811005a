package reporting

import (
	"encoding/json"
	"io"
	"math/big"

	"lpbacktest/internal/fixedpoint"
	"lpbacktest/internal/position"
)

// FeesDocument is the serializable form of a position fee report.
type FeesDocument struct {
	Pool         string            `json:"pool"`
	MintBlock    uint64            `json:"mint_block"`
	CurrentBlock uint64            `json:"current_block"`
	Liquidity    string            `json:"liquidity"`
	Lower        position.Boundary `json:"lower"`
	Upper        position.Boundary `json:"upper"`
	MintTick     int32             `json:"mint_tick"`
	CurrentTick  int32             `json:"current_tick"`
	Resumed      bool              `json:"resumed"`

	InsideMint0    string `json:"fee_growth_inside_mint0_x128"`
	InsideMint1    string `json:"fee_growth_inside_mint1_x128"`
	InsideCurrent0 string `json:"fee_growth_inside_current0_x128"`
	InsideCurrent1 string `json:"fee_growth_inside_current1_x128"`

	Owed0Raw     string `json:"owed0_raw"`
	Owed1Raw     string `json:"owed1_raw"`
	Fees0        string `json:"fees0"`
	Fees1        string `json:"fees1"`
	BelowOneUnit bool   `json:"below_one_unit"`

	PriceLower   float64 `json:"price_lower"`
	PriceUpper   float64 `json:"price_upper"`
	PriceMint    float64 `json:"price_mint"`
	PriceCurrent float64 `json:"price_current"`
	Amount0      float64 `json:"amount0"`
	Amount1      float64 `json:"amount1"`

	Warnings []string `json:"warnings,omitempty"`
}

// NewFeesDocument flattens a report; token amounts keep full precision.
func NewFeesDocument(r position.Report) FeesDocument {
	doc := FeesDocument{
		Pool:           r.Request.Pool.Hex(),
		MintBlock:      r.Request.MintBlock,
		CurrentBlock:   r.Request.CurrentBlock,
		Liquidity:      r.Request.Liquidity.String(),
		Lower:          r.Lower,
		Upper:          r.Upper,
		MintTick:       r.MintTick,
		CurrentTick:    r.CurrentTick,
		Resumed:        r.Resumed,
		InsideMint0:    r.MintInside.Token0.String(),
		InsideMint1:    r.MintInside.Token1.String(),
		InsideCurrent0: r.CurrentInside.Token0.String(),
		InsideCurrent1: r.CurrentInside.Token1.String(),
		Owed0Raw:       r.Owed.Token0.Int.String(),
		Owed1Raw:       r.Owed.Token1.Int.String(),
		Fees0:          exactUnits(r.Owed.Token0, r.Request.Decimals0),
		Fees1:          exactUnits(r.Owed.Token1, r.Request.Decimals1),
		BelowOneUnit:   r.Owed.BelowOneUnit(),
		PriceLower:     r.PriceLower,
		PriceUpper:     r.PriceUpper,
		PriceMint:      r.PriceMint,
		PriceCurrent:   r.PriceCurrent,
		Amount0:        r.Holdings.Amount0,
		Amount1:        r.Holdings.Amount1,
	}
	for _, w := range r.Warnings {
		doc.Warnings = append(doc.Warnings, w.Error())
	}
	return doc
}

// WriteFeesJSON writes the fee report as indented JSON.
func WriteFeesJSON(w io.Writer, r position.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewFeesDocument(r))
}

// exactUnits renders the whole-unit part exactly and the sub-unit part
// to 18 digits beyond the token's decimals.
func exactUnits(r fixedpoint.Result, decimals int) string {
	if r.Exact == nil {
		return formatTokenAmount(r.Int, decimals)
	}
	units := new(big.Rat).Quo(r.Exact, new(big.Rat).SetInt(fixedpoint.Pow10(decimals)))
	return formatExact(units, decimals+18)
}
