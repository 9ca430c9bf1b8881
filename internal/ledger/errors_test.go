package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/crediventas/crediventas/internal/shared"
)

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind error
	}{
		{"validation", Invalid("lines", "at least one line required"), shared.ErrValidation},
		{"credit", &InsufficientCreditError{Available: decimal.NewFromInt(800), Total: decimal.NewFromInt(812)}, shared.ErrRejected},
		{"overpayment", &OverpaymentError{Amount: decimal.NewFromInt(700), PendingBalance: decimal.NewFromInt(596)}, shared.ErrRejected},
		{"inactive", ErrCustomerInactive, shared.ErrRejected},
		{"not found", ErrNotFound, shared.ErrNotFound},
		{"transition", ErrInvalidTransition, shared.ErrConflict},
		{"version", ErrVersionConflict, shared.ErrConflict},
		{"store", &StoreWriteError{Op: "insert sale", Err: errors.New("boom")}, shared.ErrStore},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("post sale: %w", tc.err)
			require.ErrorIs(t, wrapped, tc.kind)
		})
	}
}

func TestInsufficientCreditProblemFields(t *testing.T) {
	err := &InsufficientCreditError{Available: decimal.NewFromInt(800), Total: decimal.RequireFromString("812")}
	require.Equal(t, map[string]any{"available": "800.00", "total": "812.00"}, err.ProblemFields())
	require.Equal(t, "insufficient credit: available 800.00, total 812.00", err.Error())
}

func TestWrapStoreKeepsDomainErrors(t *testing.T) {
	require.Nil(t, WrapStore("op", nil))
	require.Same(t, ErrVersionConflict, WrapStore("op", ErrVersionConflict))

	credit := &InsufficientCreditError{}
	require.Same(t, error(credit), WrapStore("op", credit))

	raw := errors.New("connection reset")
	wrapped := WrapStore("insert sale lines", raw)
	var sw *StoreWriteError
	require.ErrorAs(t, wrapped, &sw)
	require.Equal(t, "insert sale lines", sw.Op)
	require.ErrorIs(t, wrapped, raw)
	require.Same(t, wrapped, WrapStore("outer", wrapped))
}

func TestCheckMoney(t *testing.T) {
	require.NoError(t, CheckMoney("price", decimal.RequireFromString("10.50"), false))
	require.NoError(t, CheckMoney("price", decimal.RequireFromString("10.500"), false))
	require.NoError(t, CheckMoney("price", decimal.Zero, true))
	require.ErrorIs(t, CheckMoney("price", decimal.Zero, false), shared.ErrValidation)
	require.ErrorIs(t, CheckMoney("price", decimal.RequireFromString("-1"), true), shared.ErrValidation)
	require.ErrorIs(t, CheckMoney("price", decimal.RequireFromString("1.005"), true), shared.ErrValidation)
	require.NoError(t, CheckMoney("price", MaxMoney, false))
	require.EqualError(t, CheckMoney("price", decimal.RequireFromString("1000000000000"), false),
		"validation: price: must not exceed 999999999999.99")

	_, err := ParseMoney("amount", "abc", false)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = ParseMoney("amount", "1e15", false)
	require.ErrorIs(t, err, shared.ErrValidation)
	amount, err := ParseMoney("amount", "300", false)
	require.NoError(t, err)
	require.True(t, amount.Equal(decimal.NewFromInt(300)))
}
