package main

import "errors"

var (
	ErrConfigUnreadable = errors.New("config file unreadable")
	ErrConfigUnwritable = errors.New("config file unwritable")
	ErrRestartFailed    = errors.New("service restart failed")
)
