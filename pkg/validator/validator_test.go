package validator

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCouponForm struct {
	Code    string  `validate:"required,min=3,max=32"`
	Type    string  `validate:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	Value   float64 `validate:"required,gt=0"`
	MaxUses int     `validate:"gte=0"`
}

func validForm() testCouponForm {
	return testCouponForm{Code: "SAVE20", Type: "PERCENTAGE", Value: 20, MaxUses: 100}
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(validForm()))
}

func TestValidate_MissingRequired(t *testing.T) {
	s := validForm()
	s.Code = ""
	err := Validate(s)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Contains(t, fields, "Code")
	assert.Equal(t, "is required", fields["Code"])
}

func TestValidate_OneOf(t *testing.T) {
	s := validForm()
	s.Type = "BOGOF"
	err := Validate(s)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Contains(t, fields, "Type")
	assert.Contains(t, fields["Type"], "PERCENTAGE")
}

func TestValidate_GreaterThan(t *testing.T) {
	s := validForm()
	s.Value = 0
	err := Validate(s)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Contains(t, fields, "Value")
	assert.Contains(t, fields["Value"], "greater than")
}

func TestValidationError_ErrorJoinsMessages(t *testing.T) {
	s := testCouponForm{}
	err := Validate(s)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	msg := valErr.Error()
	assert.Contains(t, msg, "Code")
	assert.Contains(t, msg, "Type")
	assert.True(t, strings.Contains(msg, ";"))
}

func TestDecodeAndValidate_Success(t *testing.T) {
	body := `{"Code":"SAVE20","Type":"PERCENTAGE","Value":20,"MaxUses":10}`
	req := httptest.NewRequest("POST", "/coupons", bytes.NewBufferString(body))

	var dst testCouponForm
	err := DecodeAndValidate(req, &dst)
	require.NoError(t, err)
	assert.Equal(t, "SAVE20", dst.Code)
}

func TestDecodeAndValidate_MalformedJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/coupons", bytes.NewBufferString("{not json"))

	var dst testCouponForm
	err := DecodeAndValidate(req, &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_InvalidPayload(t *testing.T) {
	body := `{"Code":"SAVE20","Type":"PERCENTAGE","Value":-5}`
	req := httptest.NewRequest("POST", "/coupons", bytes.NewBufferString(body))

	var dst testCouponForm
	err := DecodeAndValidate(req, &dst)
	require.Error(t, err)

	var valErr *ValidationError
	assert.ErrorAs(t, err, &valErr)
}
