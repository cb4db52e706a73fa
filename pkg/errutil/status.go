package errutil

import (
	"errors"
	"net/http"
)

// CoreStatus is a stable, machine-checkable error kind. The HTTP layer maps it
// to a response status; the core never works with raw HTTP codes.
type CoreStatus string

const (
	StatusBadRequest           CoreStatus = "BAD_REQUEST"
	StatusValidationFailed     CoreStatus = "VALIDATION_FAILED"
	StatusUnauthorized         CoreStatus = "UNAUTHORIZED"
	StatusForbidden            CoreStatus = "FORBIDDEN"
	StatusNotFound             CoreStatus = "NOT_FOUND"
	StatusConflict             CoreStatus = "CONFLICT"
	StatusUnprocessableEntity  CoreStatus = "UNPROCESSABLE_ENTITY"
	StatusUnsupportedMediaType CoreStatus = "UNSUPPORTED_MEDIA_TYPE"
	StatusTooManyRequests      CoreStatus = "TOO_MANY_REQUESTS"
	StatusTimeout              CoreStatus = "TIMEOUT"
	StatusGatewayTimeout       CoreStatus = "GATEWAY_TIMEOUT"
	StatusClientClosedRequest  CoreStatus = "CLIENT_CLOSED_REQUEST"
	StatusNotImplemented       CoreStatus = "NOT_IMPLEMENTED"
	StatusBadGateway           CoreStatus = "BAD_GATEWAY"
	StatusServiceUnavailable   CoreStatus = "SERVICE_UNAVAILABLE"
	StatusInternal             CoreStatus = "INTERNAL"
	StatusUnknown              CoreStatus = "UNKNOWN"

	// Reward-domain statuses.
	StatusInvalidCode         CoreStatus = "INVALID_CODE"
	StatusCodeExpired         CoreStatus = "CODE_EXPIRED"
	StatusRewardExpired       CoreStatus = "REWARD_EXPIRED_OR_USED"
	StatusCampaignDisabled    CoreStatus = "CAMPAIGN_DISABLED"
	StatusCampaignExpired     CoreStatus = "CAMPAIGN_EXPIRED"
	StatusCapacityReached     CoreStatus = "CAPACITY_REACHED"
	StatusSelfReferral        CoreStatus = "SELF_REFERRAL"
	StatusNotNewCustomer      CoreStatus = "NOT_NEW_CUSTOMER"
	StatusInsufficientBalance CoreStatus = "INSUFFICIENT_BALANCE"
	StatusSettlementFailed    CoreStatus = "SETTLEMENT_FAILED"
)

// HTTPStatus converts the CoreStatus to its closest HTTP status code equivalent.
func (s CoreStatus) HTTPStatus() int {
	switch s {
	case StatusBadRequest, StatusValidationFailed, StatusInvalidCode, StatusCodeExpired,
		StatusSelfReferral, StatusNotNewCustomer:
		return http.StatusBadRequest
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusForbidden:
		return http.StatusForbidden
	case StatusNotFound:
		return http.StatusNotFound
	case StatusConflict:
		return http.StatusConflict
	case StatusRewardExpired, StatusCampaignExpired:
		return http.StatusGone
	case StatusUnprocessableEntity, StatusCampaignDisabled, StatusCapacityReached,
		StatusInsufficientBalance:
		return http.StatusUnprocessableEntity
	case StatusUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case StatusTooManyRequests:
		return http.StatusTooManyRequests
	case StatusTimeout:
		return http.StatusRequestTimeout
	case StatusGatewayTimeout:
		return http.StatusGatewayTimeout
	case StatusClientClosedRequest:
		return 499
	case StatusNotImplemented:
		return http.StatusNotImplemented
	case StatusBadGateway:
		return http.StatusBadGateway
	case StatusServiceUnavailable, StatusSettlementFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// StatusOf extracts the CoreStatus from err, or StatusUnknown when err carries none.
func StatusOf(err error) CoreStatus {
	if err == nil {
		return ""
	}
	var base BaseError
	if errors.As(err, &base) {
		return base.Code
	}
	return StatusUnknown
}
