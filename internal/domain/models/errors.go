package models

import "errors"

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrNoDataAvailable  = errors.New("no data available")
	ErrRefreshBusy      = errors.New("refresh already in progress")
	ErrInvalidSnapshot  = errors.New("invalid snapshot")
)
