// Copyright 2021 The Q-Logic Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fserr provides the error type used throughout the firestore
// client. Configuration mistakes are reported with InvalidArgument before
// any RPC is issued; errors from the service keep their gRPC status and can
// be classified with GRPCCode.
package fserr

import (
	"fmt"

	"golang.org/x/xerrors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// An ErrorCode describes the error's category.
type ErrorCode int

const (
	// Returned by the Code function on a nil error. It is not a valid
	// code for an error.
	OK ErrorCode = 0

	// The error could not be categorized.
	Unknown ErrorCode = 1

	// The document or resource was not found.
	NotFound ErrorCode = 2

	// A value given to the client API is incorrect. All query
	// configuration errors carry this code.
	InvalidArgument ErrorCode = 3

	// The request cannot be executed in the system's current state.
	FailedPrecondition ErrorCode = 4

	// Something unexpected happened. Internal errors always indicate
	// bugs in the client (or possibly the service), for example a
	// response message that cannot be decoded.
	Internal ErrorCode = 5

	// The feature is not implemented.
	Unimplemented ErrorCode = 6
)

func (c ErrorCode) String() string {
	switch c {
	case OK:
		return "OK"
	case Unknown:
		return "Unknown"
	case NotFound:
		return "NotFound"
	case InvalidArgument:
		return "InvalidArgument"
	case FailedPrecondition:
		return "FailedPrecondition"
	case Internal:
		return "Internal"
	case Unimplemented:
		return "Unimplemented"
	default:
		return fmt.Sprintf("ErrorCode(%d)", c)
	}
}

// An Error describes a firestore client error.
type Error struct {
	Code  ErrorCode
	msg   string
	frame xerrors.Frame
	err   error
}

func (e *Error) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("code=%v", e.Code)
	}
	return fmt.Sprintf("%s (code=%v)", e.msg, e.Code)
}

func (e *Error) Format(s fmt.State, c rune) {
	xerrors.FormatError(e, s, c)
}

func (e *Error) FormatError(p xerrors.Printer) (next error) {
	p.Print(e.Error())
	e.frame.Format(p)
	return e.err
}

// Unwrap returns the error underlying the receiver, which may be nil.
func (e *Error) Unwrap() error {
	return e.err
}

// New returns a new error with the given code, underlying error and message.
// Pass 1 for the call depth if New is called from the function raising the
// error; pass 2 if it is called from a helper function that was invoked by
// the original function; and so on.
func New(c ErrorCode, err error, callDepth int, msg string) *Error {
	return &Error{
		Code:  c,
		msg:   msg,
		frame: xerrors.Caller(callDepth),
		err:   err,
	}
}

// Newf uses format and args to format a message, then calls New.
func Newf(c ErrorCode, err error, format string, args ...interface{}) *Error {
	return New(c, err, 1, fmt.Sprintf(format, args...))
}

// Code returns the ErrorCode of err if it, or some error it wraps, is an
// *Error. If err is an error from gRPC, it returns the corresponding code.
// It returns OK on nil, Unknown otherwise.
func Code(err error) ErrorCode {
	if err == nil {
		return OK
	}
	var e *Error
	if xerrors.As(err, &e) {
		return e.Code
	}
	return GRPCCode(err)
}

// GRPCCode extracts the gRPC status code and converts it into an ErrorCode.
// It returns Unknown if the error isn't from gRPC.
func GRPCCode(err error) ErrorCode {
	switch status.Code(err) {
	case codes.NotFound:
		return NotFound
	case codes.InvalidArgument:
		return InvalidArgument
	case codes.FailedPrecondition:
		return FailedPrecondition
	case codes.Internal:
		return Internal
	case codes.Unimplemented:
		return Unimplemented
	default:
		return Unknown
	}
}
