package response

import "github.com/fatflowers/matchpay/pkg/apperr"

// APIResponseCode is the business code carried in every envelope.
type APIResponseCode int

const (
	APIResponseCodeOK                 APIResponseCode = 0
	APIResponseCodeBadRequest         APIResponseCode = 40000
	APIResponseCodeUnauthenticated    APIResponseCode = 40100
	APIResponseCodePermissionDenied   APIResponseCode = 40300
	APIResponseCodeNotFound           APIResponseCode = 40400
	APIResponseCodeAlreadyExists      APIResponseCode = 40900
	APIResponseCodeFailedPrecondition APIResponseCode = 41200
	APIResponseCodeError              APIResponseCode = 50000
)

var codeToMsg = map[APIResponseCode]string{
	APIResponseCodeOK:         "ok",
	APIResponseCodeBadRequest: "unexpected error",
}

var appCodes = map[apperr.Code]APIResponseCode{
	apperr.CodeInvalidArgument:    APIResponseCodeBadRequest,
	apperr.CodeUnauthenticated:    APIResponseCodeUnauthenticated,
	apperr.CodePermissionDenied:   APIResponseCodePermissionDenied,
	apperr.CodeNotFound:           APIResponseCodeNotFound,
	apperr.CodeAlreadyExists:      APIResponseCodeAlreadyExists,
	apperr.CodeFailedPrecondition: APIResponseCodeFailedPrecondition,
	apperr.CodeInternal:           APIResponseCodeError,
}

// APIResponse is the generic response envelope used by HTTP APIs.
// Use OKT / ErrorT / FromError helpers to construct instances.
type APIResponse[T any] struct {
	Code    APIResponseCode `json:"code"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
}

// OKT returns a successful response with data.
func OKT[T any](data T) *APIResponse[T] {
	return &APIResponse[T]{Code: APIResponseCodeOK, Message: codeToMsg[APIResponseCodeOK], Data: data}
}

// ErrorT returns an error response with message and optional data.
func ErrorT[T any](code APIResponseCode, data T) *APIResponse[T] {
	return &APIResponse[T]{Code: code, Message: codeToMsg[code], Data: data}
}

// FromError renders err as an envelope plus the HTTP status to send it with.
// Internal failures only expose the generic message.
func FromError(err error) (int, *APIResponse[any]) {
	e := apperr.Normalize(err)
	code, ok := appCodes[e.Code]
	if !ok {
		code = APIResponseCodeError
	}
	resp := ErrorT[any](code, map[string]string{"reason": string(e.Code)})
	resp.Message = apperr.PublicMessage(e)
	return apperr.HTTPStatus(e.Code), resp
}
