package service

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// DecodeTransactionOptions builds a TransactionOptions from a base JSON
// document amended by an RFC 7396 JSON merge patch, letting a host send
// only the fields it wants to override from a process-wide default
// (spec §6 "Transaction option recognized fields") rather than a
// complete document on every begin_transaction call.
func DecodeTransactionOptions(base, patch []byte) (TransactionOptions, error) {
	var merged = base
	if len(patch) > 0 {
		var err error
		merged, err = jsonpatch.MergePatch(base, patch)
		if err != nil {
			return TransactionOptions{}, fmt.Errorf("merging transaction option patch: %w", err)
		}
	}
	var opts TransactionOptions
	if err := json.Unmarshal(merged, &opts); err != nil {
		return TransactionOptions{}, fmt.Errorf("decoding transaction options: %w", err)
	}
	return opts, nil
}
