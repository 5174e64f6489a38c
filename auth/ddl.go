package auth

import "github.com/estuary/sqlflow/errs"

// TxnMode classifies the transaction attempting a DDL statement, matching
// the OCC/LTX/RTX modes in the GLOSSARY.
type TxnMode int

const (
	ModeOCC TxnMode = iota
	ModeLTX
	ModeRTX
)

// CheckDDL implements the DDL gating rules of spec §4.8:
//   - DDL under a read-only transaction fails with write-by-rtx.
//   - DDL under an LTX without modifies_definitions fails with
//     ltx-write-without-wp.
//   - DDL after any row of the target table has been written fails with
//     unsupported-runtime-feature (no secondary-index backfill).
func CheckDDL(mode TxnMode, modifiesDefinitions bool, tableHasWrites bool) errs.ErrorInfo {
	if mode == ModeRTX {
		return errs.New(errs.CodeWriteByRTX, "DDL is not permitted under a read-only transaction")
	}
	if mode == ModeLTX && !modifiesDefinitions {
		return errs.New(errs.CodeLTXWriteWithoutWritePreserve, "DDL under a long transaction requires modifies_definitions")
	}
	if tableHasWrites {
		return errs.New(errs.CodeUnsupportedRuntimeFeature, "cannot run DDL after rows have been written to the target table; secondary index backfill is not supported")
	}
	return errs.ErrorInfo{}
}
