package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crediventas/crediventas/internal/shared"
)

type rejection struct{}

func (rejection) Error() string                 { return "no credit" }
func (rejection) Is(target error) bool          { return target == shared.ErrRejected }
func (rejection) ProblemFields() map[string]any { return map[string]any{"available": "800.00"} }

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: bad", shared.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("sale: %w", shared.ErrNotFound), http.StatusNotFound},
		{rejection{}, http.StatusUnprocessableEntity},
		{shared.ErrDuplicate, http.StatusConflict},
		{shared.ErrConflict, http.StatusConflict},
		{fmt.Errorf("post: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("pg down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, tc.err.Error())
		require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	}
}

func TestRespondErrorIncludesProblemFields(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("post sale: %w", rejection{}))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "800.00", body["available"])
	require.Equal(t, "Rejected", body["title"])
	require.EqualValues(t, 422, body["status"])
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("password=secret"))
	require.NotContains(t, rec.Body.String(), "secret")
}

type lineReq struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

type saleReq struct {
	CustomerID string    `json:"customer_id" validate:"required"`
	Lines      []lineReq `json:"lines" validate:"required,min=1,dive"`
}

func TestValidateUsesJSONNames(t *testing.T) {
	err := Validate(saleReq{CustomerID: "x", Lines: []lineReq{{ProductID: "nope", Quantity: 0}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "must be a UUID", fe["lines[0].product_id"])
	require.Equal(t, "must be greater than or equal to 1", fe["lines[0].quantity"])

	require.NoError(t, Validate(saleReq{CustomerID: "x", Lines: []lineReq{{ProductID: "7b0d5c4e-9a53-4f4b-9d51-6f1f2b3c4d5e", Quantity: 1}}}))
}

func TestDecodeJSON(t *testing.T) {
	var target saleReq
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"customer_id":"a","extra":1}`))
	err := DecodeJSON(httptest.NewRecorder(), req, &target)
	require.ErrorIs(t, err, shared.ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	require.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), req, &target), shared.ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"customer_id":"a"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &target))
	require.Equal(t, "a", target.CustomerID)
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5&bad=x", nil)
	v, err := QueryInt(req, "limit", 10, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 5, v)

	v, err = QueryInt(req, "missing", 10, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 10, v)

	_, err = QueryInt(req, "bad", 10, 1, 100)
	require.ErrorIs(t, err, shared.ErrValidation)
}
