package errutil

import (
	"fmt"
)

type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type BaseError struct {
	Code    CoreStatus `json:"code"`
	Message string     `json:"message"`
	Details []Detail   `json:"details,omitempty"`
	Err     error      `json:"-"`
}

func (e BaseError) Status() CoreStatus {
	return e.Code
}

func (e BaseError) JSON() interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"code":    e.Code,
			"message": e.Message,
			"details": e.Details,
		},
	}
}

func (e BaseError) Unwrap() error {
	return e.Err
}

func (e BaseError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.messageWithErr())
}

func (e BaseError) messageWithErr() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

type Option func(*BaseError)

func WithDetails(details ...Detail) Option {
	return func(be *BaseError) { be.Details = details }
}

func WithErr(err error) Option {
	return func(be *BaseError) { be.Err = err }
}

func New(code CoreStatus, message string, opts ...Option) error {
	be := BaseError{Code: code, Message: message}
	for _, opt := range opts {
		opt(&be)
	}
	return be
}

func NotFound(msg string, err error, options ...Option) error {
	return New(StatusNotFound, msg, withWrapped(err, options)...)
}

func UnprocessableEntity(msg string, err error, options ...Option) error {
	return New(StatusUnprocessableEntity, msg, withWrapped(err, options)...)
}

func Conflict(msg string, err error, options ...Option) error {
	return New(StatusConflict, msg, withWrapped(err, options)...)
}

func BadRequest(msg string, err error, options ...Option) error {
	return New(StatusBadRequest, msg, withWrapped(err, options)...)
}

func ValidationFailed(msg string, err error, options ...Option) error {
	return New(StatusValidationFailed, msg, withWrapped(err, options)...)
}

func Internal(msg string, err error, options ...Option) error {
	return New(StatusInternal, msg, withWrapped(err, options)...)
}

func Unauthorized(msg string, err error, options ...Option) error {
	return New(StatusUnauthorized, msg, withWrapped(err, options)...)
}

func Forbidden(msg string, err error, options ...Option) error {
	return New(StatusForbidden, msg, withWrapped(err, options)...)
}

func InvalidCode(msg string, err error, options ...Option) error {
	return New(StatusInvalidCode, msg, withWrapped(err, options)...)
}

func CodeExpired(msg string, err error, options ...Option) error {
	return New(StatusCodeExpired, msg, withWrapped(err, options)...)
}

func RewardExpired(msg string, err error, options ...Option) error {
	return New(StatusRewardExpired, msg, withWrapped(err, options)...)
}

func CampaignDisabled(msg string, err error, options ...Option) error {
	return New(StatusCampaignDisabled, msg, withWrapped(err, options)...)
}

func CampaignExpired(msg string, err error, options ...Option) error {
	return New(StatusCampaignExpired, msg, withWrapped(err, options)...)
}

func CapacityReached(msg string, err error, options ...Option) error {
	return New(StatusCapacityReached, msg, withWrapped(err, options)...)
}

func SelfReferral(msg string, err error, options ...Option) error {
	return New(StatusSelfReferral, msg, withWrapped(err, options)...)
}

func NotNewCustomer(msg string, err error, options ...Option) error {
	return New(StatusNotNewCustomer, msg, withWrapped(err, options)...)
}

func InsufficientBalance(msg string, err error, options ...Option) error {
	return New(StatusInsufficientBalance, msg, withWrapped(err, options)...)
}

func SettlementFailed(msg string, err error, options ...Option) error {
	return New(StatusSettlementFailed, msg, withWrapped(err, options)...)
}

func withWrapped(err error, options []Option) []Option {
	if err == nil {
		return options
	}
	return append(options, WithErr(err))
}
