package errutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[CoreStatus]int{
		StatusInvalidCode:         http.StatusBadRequest,
		StatusCodeExpired:         http.StatusBadRequest,
		StatusSelfReferral:        http.StatusBadRequest,
		StatusNotNewCustomer:      http.StatusBadRequest,
		StatusRewardExpired:       http.StatusGone,
		StatusCampaignExpired:     http.StatusGone,
		StatusCampaignDisabled:    http.StatusUnprocessableEntity,
		StatusCapacityReached:     http.StatusUnprocessableEntity,
		StatusInsufficientBalance: http.StatusUnprocessableEntity,
		StatusSettlementFailed:    http.StatusServiceUnavailable,
		StatusNotFound:            http.StatusNotFound,
		StatusConflict:            http.StatusConflict,
		StatusInternal:            http.StatusInternalServerError,
	}

	for status, want := range cases {
		require.Equal(t, want, status.HTTPStatus(), string(status))
	}
}

func TestStatusOf(t *testing.T) {
	require.Equal(t, StatusInvalidCode, StatusOf(InvalidCode("bad code", nil)))
	require.Equal(t, StatusUnknown, StatusOf(errors.New("plain")))
	require.Equal(t, CoreStatus(""), StatusOf(nil))

	// wrapped errors keep their status
	wrapped := fmt.Errorf("handler: %w", RewardExpired("gone", nil))
	require.Equal(t, StatusRewardExpired, StatusOf(wrapped))
}

func TestBaseErrorUnwrap(t *testing.T) {
	cause := errors.New("db down")
	err := SettlementFailed("could not settle", cause)

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "SETTLEMENT_FAILED")
	require.Contains(t, err.Error(), "db down")
}
