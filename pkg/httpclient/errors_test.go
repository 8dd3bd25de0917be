package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/oakmart/checkout-engine/pkg/errors"
)

func responseWith(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestParseResponseError_StructuredNotFound(t *testing.T) {
	resp := responseWith(http.StatusNotFound,
		`{"error":{"code":"NOT_FOUND","message":"rate table missing"}}`)

	err := ParseResponseError(resp, "tax-provider")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
}

func TestParseResponseError_StructuredBadRequest(t *testing.T) {
	resp := responseWith(http.StatusBadRequest,
		`{"error":{"code":"INVALID_INPUT","message":"unsupported region"}}`)

	err := ParseResponseError(resp, "tax-provider")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "tax-provider")
	assert.Contains(t, err.Error(), "unsupported region")
}

func TestParseResponseError_StructuredServiceUnavailable(t *testing.T) {
	resp := responseWith(http.StatusServiceUnavailable,
		`{"error":{"code":"SERVICE_UNAVAILABLE","message":"maintenance"}}`)

	err := ParseResponseError(resp, "tax-provider")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail))
}

func TestParseResponseError_UnstructuredBody(t *testing.T) {
	resp := responseWith(http.StatusBadGateway, "upstream timeout")

	err := ParseResponseError(resp, "tax-provider")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tax-provider")
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestParseResponseError_EmptyBody(t *testing.T) {
	resp := responseWith(http.StatusInternalServerError, "")

	err := ParseResponseError(resp, "tax-provider")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
