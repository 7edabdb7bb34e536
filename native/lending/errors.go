package lending

import "errors"

// Error carries the stable string code exposed to callers alongside a
// human-readable message. The codes are part of the compatibility surface
// and must not change.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return "lending: " + e.Message }

func coded(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	// Risk gate errors.
	ErrBorrowAmountTooLarge     = coded("BorrowAmountTooLarge", "borrow amount too large")
	ErrWithdrawExceedsCollateral = coded("WithdrawAmountExceedsCollateralValue", "withdraw amount exceeds collateral value")
	ErrHealthyAccount           = coded("HealthyAccount", "account is healthy")

	// Capacity and liquidity errors.
	ErrOverWithdrawRequest   = coded("OverWithdrawRequest", "over withdraw request")
	ErrOverBorrowRequest     = coded("OverBorrowRequest", "over borrow request")
	ErrOverRepayRequest      = coded("OverRepayRequest", "over repay request")
	ErrOverBorrowableAmount  = coded("OverBorrowableAmount", "over borrowable amount")
	ErrInsufficientLiquidity = coded("InsufficientLiquidity", "insufficient liquidity")

	// Arithmetic errors.
	ErrMathOverflow = coded("MathOverflow", "math overflow")

	// Oracle errors.
	ErrInvalidPriceFeed = coded("InvalidPriceFeed", "invalid price feed")
	ErrStalePrice       = coded("StalePrice", "stale price")

	// Input validation errors.
	ErrInvalidDepositAmount  = coded("InvalidDepositAmount", "invalid deposit amount")
	ErrInvalidWithdrawAmount = coded("InvalidWithdrawAmount", "invalid withdraw amount")
	ErrDuplicateBank         = coded("DuplicateBank", "bank already exists for mint")
	ErrUnknownBank           = coded("UnknownBank", "no bank configured for mint")
)

// CodeOf extracts the stable error code, or empty string for errors outside
// the ledger taxonomy.
func CodeOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}
