package response

import (
	"errors"
	"net/http"
	"testing"

	"github.com/fatflowers/matchpay/pkg/apperr"
	"github.com/stretchr/testify/require"
)

func TestFromError_TaxonomyErrorKeepsMessage(t *testing.T) {
	status, body := FromError(apperr.NotFound("no completed payment to refund"))
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, APIResponseCodeNotFound, body.Code)
	require.Equal(t, "no completed payment to refund", body.Message)
}

func TestFromError_UnexpectedErrorIsGeneric(t *testing.T) {
	status, body := FromError(errors.New("dial tcp 10.0.0.1:5432: timeout"))
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, APIResponseCodeError, body.Code)
	require.Equal(t, apperr.InternalMessage, body.Message)
}
