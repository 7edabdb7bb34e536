package server

import (
	"encoding/json"
	"net/http"

	"lendex/native/lending"
)

// errorBody is the JSON error envelope. Code carries the stable ledger
// error code so clients can branch without parsing messages.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func statusForCode(code string) int {
	switch code {
	case "InvalidDepositAmount", "InvalidWithdrawAmount", "OverBorrowRequest":
		return http.StatusBadRequest
	case "UnknownBank":
		return http.StatusNotFound
	case "DuplicateBank":
		return http.StatusConflict
	case "BorrowAmountTooLarge", "WithdrawAmountExceedsCollateralValue",
		"OverWithdrawRequest", "OverRepayRequest", "OverBorrowableAmount",
		"InsufficientLiquidity", "HealthyAccount":
		return http.StatusUnprocessableEntity
	case "StalePrice", "InvalidPriceFeed":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeLedgerError(w http.ResponseWriter, err error) {
	var body errorBody
	status := http.StatusInternalServerError
	if code := lending.CodeOf(err); code != "" {
		status = statusForCode(code)
		body.Error.Code = code
		body.Error.Message = err.Error()
	} else {
		body.Error.Code = "Internal"
		body.Error.Message = "internal error"
	}
	writeJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	var body errorBody
	body.Error.Code = "BadRequest"
	body.Error.Message = message
	writeJSON(w, http.StatusBadRequest, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
