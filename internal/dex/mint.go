package dex

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"lpbacktest/internal/model"
)

var ErrMintNotFound = errors.New("mint log not found")

// MintTopic returns topic0 of the pool Mint event.
func MintTopic() (common.Hash, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return common.Hash{}, err
	}
	return poolABI.Events["Mint"].ID, nil
}

// DecodeMint decodes a pool Mint log.
func DecodeMint(log types.Log) (model.MintEvent, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return model.MintEvent{}, fmt.Errorf("parse pool abi: %w", err)
	}
	event := poolABI.Events["Mint"]
	if len(log.Topics) == 0 || log.Topics[0] != event.ID {
		return model.MintEvent{}, fmt.Errorf("not a mint log")
	}
	indexedArgs := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexedArgs)+1 {
		return model.MintEvent{}, fmt.Errorf("expected %d topics, got %d", len(indexedArgs)+1, len(log.Topics))
	}

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArgs, log.Topics[1:]); err != nil {
		return model.MintEvent{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.MintEvent{}, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	if len(values) != 4 {
		return model.MintEvent{}, fmt.Errorf("unexpected mint values: %d", len(values))
	}

	sender, err := asAddress(values[0])
	if err != nil {
		return model.MintEvent{}, err
	}
	amount, err := asBigInt(values[1])
	if err != nil {
		return model.MintEvent{}, err
	}
	amount0, err := asBigInt(values[2])
	if err != nil {
		return model.MintEvent{}, err
	}
	amount1, err := asBigInt(values[3])
	if err != nil {
		return model.MintEvent{}, err
	}
	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return model.MintEvent{}, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return model.MintEvent{}, err
	}

	return model.MintEvent{
		Pool:      log.Address.Hex(),
		Block:     log.BlockNumber,
		TxHash:    log.TxHash.Hex(),
		Sender:    sender.Hex(),
		Owner:     indexed.Owner.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    amount.String(),
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
	}, nil
}

// FindMint returns the first Mint emitted by pool in the receipt.
func FindMint(receipt *types.Receipt, pool common.Address) (model.MintEvent, error) {
	if receipt == nil {
		return model.MintEvent{}, ErrMintNotFound
	}
	topic, err := MintTopic()
	if err != nil {
		return model.MintEvent{}, err
	}
	for _, log := range receipt.Logs {
		if log == nil || log.Address != pool || len(log.Topics) == 0 || log.Topics[0] != topic {
			continue
		}
		event, err := DecodeMint(*log)
		if err != nil {
			return model.MintEvent{}, err
		}
		if event.Block == 0 && receipt.BlockNumber != nil {
			event.Block = receipt.BlockNumber.Uint64()
		}
		return event, nil
	}
	return model.MintEvent{}, fmt.Errorf("%w: pool %s", ErrMintNotFound, pool.Hex())
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
