package tool

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGenerateUUIDV7_IsVersion7(t *testing.T) {
	id, err := uuid.Parse(GenerateUUIDV7())
	require.NoError(t, err)
	require.Equal(t, uuid.Version(7), id.Version())
}

func TestIdempotencyKey_SkipsEmptyParts(t *testing.T) {
	require.Equal(t, "refund:pay-1", IdempotencyKey("refund", " ", "pay-1"))
	require.Equal(t, "", IdempotencyKey())
}
