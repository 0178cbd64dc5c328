package types

import (
	"fmt"
	"strconv"
)

// ResponseCode is the terminal status recorded in a transaction receipt.
type ResponseCode uint16

const (
	ResponseOK ResponseCode = iota
	ResponseSuccess
	ResponseInvalidTransaction
	ResponseInvalidTransactionBody
	ResponseInvalidNodeAccount
	ResponsePayerAccountNotFound
	ResponseInvalidPayerSignature
	ResponseInvalidSignature
	ResponseTransactionExpired
	ResponseInvalidTransactionDuration
	ResponseInvalidTransactionStart
	ResponseInsufficientPayerBalance
	ResponseInsufficientTxFee
	ResponseInsufficientAccountBalance
	ResponseDuplicateTransaction
	ResponseUnauthorized
	ResponseAuthorizationFailed
	ResponseEntityNotAllowedToDelete
	ResponseNotSupported
	ResponseFailInvalid
	ResponseInvalidAccountID
	ResponseAccountDeleted
	ResponseInvalidAccountAmounts
	ResponseAccountRepeatedInAccountAmounts
	ResponseTransferAccountSameAsDeleteAccount
	ResponseInvalidFileID
	ResponseInvalidFreezeTransactionBody
	ResponseKeyRequired
	ResponseBadEncoding
	ResponseMemoTooLong
	ResponseFileContentEmpty
	ResponseBusy
	ResponseFeeScheduleFilePartUploaded
	ResponseInvalidExchangeRateFile
	ResponseInvalidPropertiesFile
	ResponseInvalidFreezeTime
)

var responseNames = map[ResponseCode]string{
	ResponseOK:                                 "OK",
	ResponseSuccess:                            "SUCCESS",
	ResponseInvalidTransaction:                 "INVALID_TRANSACTION",
	ResponseInvalidTransactionBody:             "INVALID_TRANSACTION_BODY",
	ResponseInvalidNodeAccount:                 "INVALID_NODE_ACCOUNT",
	ResponsePayerAccountNotFound:               "PAYER_ACCOUNT_NOT_FOUND",
	ResponseInvalidPayerSignature:              "INVALID_PAYER_SIGNATURE",
	ResponseInvalidSignature:                   "INVALID_SIGNATURE",
	ResponseTransactionExpired:                 "TRANSACTION_EXPIRED",
	ResponseInvalidTransactionDuration:         "INVALID_TRANSACTION_DURATION",
	ResponseInvalidTransactionStart:            "INVALID_TRANSACTION_START",
	ResponseInsufficientPayerBalance:           "INSUFFICIENT_PAYER_BALANCE",
	ResponseInsufficientTxFee:                  "INSUFFICIENT_TX_FEE",
	ResponseInsufficientAccountBalance:         "INSUFFICIENT_ACCOUNT_BALANCE",
	ResponseDuplicateTransaction:               "DUPLICATE_TRANSACTION",
	ResponseUnauthorized:                       "UNAUTHORIZED",
	ResponseAuthorizationFailed:                "AUTHORIZATION_FAILED",
	ResponseEntityNotAllowedToDelete:           "ENTITY_NOT_ALLOWED_TO_DELETE",
	ResponseNotSupported:                       "NOT_SUPPORTED",
	ResponseFailInvalid:                        "FAIL_INVALID",
	ResponseInvalidAccountID:                   "INVALID_ACCOUNT_ID",
	ResponseAccountDeleted:                     "ACCOUNT_DELETED",
	ResponseInvalidAccountAmounts:              "INVALID_ACCOUNT_AMOUNTS",
	ResponseAccountRepeatedInAccountAmounts:    "ACCOUNT_REPEATED_IN_ACCOUNT_AMOUNTS",
	ResponseTransferAccountSameAsDeleteAccount: "TRANSFER_ACCOUNT_SAME_AS_DELETE_ACCOUNT",
	ResponseInvalidFileID:                      "INVALID_FILE_ID",
	ResponseInvalidFreezeTransactionBody:       "INVALID_FREEZE_TRANSACTION_BODY",
	ResponseKeyRequired:                        "KEY_REQUIRED",
	ResponseBadEncoding:                        "BAD_ENCODING",
	ResponseMemoTooLong:                        "MEMO_TOO_LONG",
	ResponseFileContentEmpty:                   "FILE_CONTENT_EMPTY",
	ResponseBusy:                               "BUSY",
	ResponseFeeScheduleFilePartUploaded:        "FEE_SCHEDULE_FILE_PART_UPLOADED",
	ResponseInvalidExchangeRateFile:            "INVALID_EXCHANGE_RATE_FILE",
	ResponseInvalidPropertiesFile:              "INVALID_PROPERTIES_FILE",
	ResponseInvalidFreezeTime:                  "INVALID_FREEZE_TIME",
}

func (c ResponseCode) String() string {
	if name, ok := responseNames[c]; ok {
		return name
	}
	return "ResponseCode(" + strconv.Itoa(int(c)) + ")"
}

// MarshalText renders the canonical name so records stay human readable.
func (c ResponseCode) MarshalText() ([]byte, error) {
	name, ok := responseNames[c]
	if !ok {
		return nil, fmt.Errorf("unknown response code %d", uint16(c))
	}
	return []byte(name), nil
}

// UnmarshalText parses a canonical response code name.
func (c *ResponseCode) UnmarshalText(text []byte) error {
	for code, name := range responseNames {
		if name == string(text) {
			*c = code
			return nil
		}
	}
	return fmt.Errorf("unknown response code %q", string(text))
}

// IsTimeBoxFailure reports whether the code rejects the transaction's validity window.
func (c ResponseCode) IsTimeBoxFailure() bool {
	switch c {
	case ResponseTransactionExpired, ResponseInvalidTransactionDuration, ResponseInvalidTransactionStart:
		return true
	default:
		return false
	}
}
