package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func requireDomainError(t *testing.T, err error, status int, message string) *apperrors.DomainError {
	t.Helper()
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	require.Equal(t, status, de.HTTPStatus, "error: %v", err)
	if message != "" {
		require.Equal(t, message, de.Message)
	}
	return de
}
