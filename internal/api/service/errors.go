package service

import "errors"

var (
	ErrPipelineNotFound = errors.New("pipeline not found")
	ErrNodeNotFound     = errors.New("node not found")
	ErrInvalidPosition  = errors.New("invalid position")
)
