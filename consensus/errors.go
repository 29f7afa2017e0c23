package consensus

import "fmt"

// ErrorCode names a consensus rejection reason. Values match the reject
// strings a peer layer would relay (e.g. "bad-txns-vin-empty").
type ErrorCode string

const (
	ErrParse ErrorCode = "TX_ERR_PARSE"

	ErrVinEmpty        ErrorCode = "bad-txns-vin-empty"
	ErrVoutEmpty       ErrorCode = "bad-txns-vout-empty"
	ErrOversize        ErrorCode = "bad-txns-oversize"
	ErrVoutNegative    ErrorCode = "bad-txns-vout-negative"
	ErrVoutTooLarge    ErrorCode = "bad-txns-vout-toolarge"
	ErrTotalTooLarge   ErrorCode = "bad-txns-txouttotal-toolarge"
	ErrInputsDuplicate ErrorCode = "bad-txns-inputs-duplicate"
	ErrCoinbaseLength  ErrorCode = "bad-cb-length"
	ErrPrevoutNull     ErrorCode = "bad-txns-prevout-null"

	ErrMissingOrSpent    ErrorCode = "missingorspent"
	ErrPrematureSpend    ErrorCode = "premature-spend-of-coinbase"
	ErrInputValuesRange  ErrorCode = "bad-txns-inputvalues-outofrange"
	ErrInBelowOut        ErrorCode = "bad-txns-in-belowout"
	ErrFeeNegative       ErrorCode = "bad-txns-fee-negative"
	ErrFeeOutOfRange     ErrorCode = "bad-txns-fee-outofrange"

	ErrSigInvalid    ErrorCode = "sig-invalid"
	ErrScriptInvalid ErrorCode = "script-invalid"
)

// ConsensusError pairs a reject reason with the misbehavior score a peer
// layer should apply, per the check_sanity/check_inputs reason/score table.
type ConsensusError struct {
	Code  ErrorCode
	Score int
	Msg   string
}

func (e *ConsensusError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func txerr(code ErrorCode, score int, msg string) error {
	return &ConsensusError{Code: code, Score: score, Msg: msg}
}

// AsConsensusError extracts the structured error, if err is one.
func AsConsensusError(err error) (*ConsensusError, bool) {
	ce, ok := err.(*ConsensusError)
	return ce, ok
}
