package tracker

import "github.com/kazz187/timeguild/pkg/cerr"

var (
	ErrCameraUnavailable = &cerr.Error{Code: cerr.Unavailable, Msg: "camera unavailable"}
	ErrTaskRunning       = &cerr.Error{Code: cerr.FailedPrecondition, Msg: "a task is already running"}
	ErrInvalidTransition = &cerr.Error{Code: cerr.FailedPrecondition, Msg: "invalid task status transition"}
	ErrNoProjectResolved = &cerr.Error{Code: cerr.NotFound, Msg: "task has no resolvable project"}
	ErrInvalidInterval   = &cerr.Error{Code: cerr.InvalidArgument, Msg: "stop time is before start time"}
	ErrEmptyInput        = &cerr.Error{Code: cerr.InvalidArgument, Msg: "description is empty"}
	ErrSuggestionFailed  = &cerr.Error{Code: cerr.Unavailable, Msg: "suggestion failed"}
)
