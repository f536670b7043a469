package worker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/dev-protocol/send-transactions/abiargs"
	"github.com/dev-protocol/send-transactions/common"
	"github.com/dev-protocol/send-transactions/config"
	"github.com/dev-protocol/send-transactions/sender"
)

// Request is the JSON payload of one intake stream message.
type Request struct {
	To        string          `json:"to"`
	ABI       json.RawMessage `json:"abi,omitempty"`
	Method    string          `json:"method,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
	Data      hexutil.Bytes   `json:"data,omitempty"`
	ChainID   uint64          `json:"chainId,omitempty"`
	RPCURL    string          `json:"rpcUrl,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Retry     *RetrySpec      `json:"retry,omitempty"`
}

// RetrySpec overrides the retry policy field by field. Absent fields keep
// the default.
type RetrySpec struct {
	Attempts   *int   `json:"attempts,omitempty"`
	IntervalMs *int64 `json:"intervalMs,omitempty"`
}

func (s *RetrySpec) policy() *sender.RetryPolicy {
	policy := sender.DefaultRetryPolicy
	if s.Attempts != nil {
		policy.MaxAttempts = *s.Attempts
	}
	if s.IntervalMs != nil {
		policy.Interval = time.Duration(*s.IntervalMs) * time.Millisecond
	}
	return &policy
}

var errInvalidRequest = errors.New("invalid request")

func DecodeRequest(payload []byte) (*Request, error) {
	var req Request
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidRequest, err)
	}
	return &req, nil
}

// Intent validates the request and fills chain id and RPC URL from
// defaults when the request leaves them out.
func (r *Request) Intent(defaults config.ChainConfig) (sender.Intent, sender.SendOptions, error) {
	to, err := common.ParseAddress(r.To)
	if err != nil {
		return sender.Intent{}, sender.SendOptions{}, fmt.Errorf("%w: %w", errInvalidRequest, err)
	}
	intent := sender.Intent{
		Contract: to,
		ChainID:  r.ChainID,
		RPCURL:   r.RPCURL,
	}
	if intent.ChainID == 0 {
		intent.ChainID = defaults.ChainId
	}
	if intent.RPCURL == "" {
		intent.RPCURL = defaults.RpcUrl
	}
	if intent.RPCURL == "" {
		return sender.Intent{}, sender.SendOptions{}, fmt.Errorf("%w: no rpc url", errInvalidRequest)
	}

	switch {
	case r.Method != "":
		if len(r.ABI) == 0 {
			return sender.Intent{}, sender.SendOptions{}, fmt.Errorf("%w: method %q without abi", errInvalidRequest, r.Method)
		}
		parsed, err := abi.JSON(bytes.NewReader(r.ABI))
		if err != nil {
			return sender.Intent{}, sender.SendOptions{}, fmt.Errorf("%w: abi: %w", errInvalidRequest, err)
		}
		intent.ABI = &parsed
		intent.Method = r.Method
		if method, ok := parsed.Methods[r.Method]; ok {
			args, err := abiargs.Decode(method, r.Args)
			if err != nil {
				return sender.Intent{}, sender.SendOptions{}, fmt.Errorf("%w: %w", errInvalidRequest, err)
			}
			intent.Args = args
		}
	case len(r.Data) > 0:
		intent.Data = r.Data
	default:
		return sender.Intent{}, sender.SendOptions{}, fmt.Errorf("%w: either method or data is required", errInvalidRequest)
	}

	opts := sender.SendOptions{RequestID: r.RequestID}
	if r.Retry != nil {
		opts.Retry = r.Retry.policy()
	}
	return intent, opts, nil
}
