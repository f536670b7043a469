// Package wallet holds the key the relay signs transactions with.
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"

	"github.com/dev-protocol/send-transactions/config"
)

// DefaultHDPath is the first account of the standard Ethereum derivation.
const DefaultHDPath = "m/44'/60'/0'/0/0"

var (
	ErrNoKeyMaterial   = errors.New("no private key or mnemonic configured")
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
)

type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// FromHex parses a hex private key, with or without the 0x prefix.
func FromHex(hexKey string) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewKeySigner(key), nil
}

// FromMnemonic derives the key at path from a BIP-39 phrase with an empty
// passphrase. An empty path means DefaultHDPath.
func FromMnemonic(mnemonic, path string) (*KeySigner, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	if path == "" {
		path = DefaultHDPath
	}
	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	indexes, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	current := master
	for _, index := range indexes {
		current, err = current.Derive(index)
		if err != nil {
			return nil, fmt.Errorf("derive %s: %w", path, err)
		}
	}
	priv, err := current.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("derive private key: %w", err)
	}
	key, err := crypto.ToECDSA(priv.Serialize())
	if err != nil {
		return nil, err
	}
	return NewKeySigner(key), nil
}

// FromConfig prefers the private key over the mnemonic when both are set.
func FromConfig(cfg config.SignerConfig) (*KeySigner, error) {
	switch {
	case cfg.PrivateKey != "":
		return FromHex(cfg.PrivateKey)
	case cfg.Mnemonic != "":
		return FromMnemonic(cfg.Mnemonic, cfg.HDPath)
	default:
		return nil, ErrNoKeyMaterial
	}
}

// ParsePath turns m/44'/60'/0'/0/0 (or 44h/...) into child indexes.
func ParsePath(path string) ([]uint32, error) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "m/")
	if path == "" || path == "m" {
		return nil, nil
	}
	segments := strings.Split(path, "/")
	indexes := make([]uint32, 0, len(segments))
	for _, segment := range segments {
		hardened := false
		if strings.HasSuffix(segment, "'") || strings.HasSuffix(segment, "h") {
			hardened = true
			segment = segment[:len(segment)-1]
		}
		val, err := strconv.ParseUint(segment, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("invalid path segment %q: %w", segment, err)
		}
		index := uint32(val)
		if hardened {
			index += hdkeychain.HardenedKeyStart
		}
		indexes = append(indexes, index)
	}
	return indexes, nil
}

func (s *KeySigner) Address() common.Address {
	return s.address
}

func (s *KeySigner) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}
