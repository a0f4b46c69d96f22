package models

import "errors"

var (
	ErrInvalidAlertID   = errors.New("invalid alert ID")
	ErrInvalidAssetID   = errors.New("invalid asset ID")
	ErrInvalidKind      = errors.New("invalid alert kind")
	ErrInvalidThreshold = errors.New("invalid threshold")
	ErrInvalidOwnerID   = errors.New("invalid owner ID")
	ErrAlertNotFound    = errors.New("alert not found")
)
