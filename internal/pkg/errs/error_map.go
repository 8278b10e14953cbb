/*
Package errs provides the application's custom error type and error code
constants.

This file defines the map from error codes to the CustomError templates used
for socket error events and HTTP responses.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: Request validation and admission errors
	ErrInvalidParams:       {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrNoRoomCriteria:      {Code: ErrNoRoomCriteria, Message: "No room ID or coordinates provided."},
	ErrEmptyMessage:        {Code: ErrEmptyMessage, Message: "Message cannot be empty."},
	ErrInvalidReport:       {Code: ErrInvalidReport, Message: "Invalid report data."},
	ErrTooManyJoinAttempts: {Code: ErrTooManyJoinAttempts, Message: "Too many join attempts, try again in 1 minute.", Status: http.StatusTooManyRequests},

	// 2xxx: Room and presence errors
	ErrNotInRoom: {Code: ErrNotInRoom, Message: "You are not in any room."},
	ErrWrongRoom: {Code: ErrWrongRoom, Message: "You are not in this room."},

	// 3xxx: User, session, and authorization errors
	ErrUnauthorized:   {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrUserNotFound:   {Code: ErrUserNotFound, Message: "User not found."},
	ErrUserBlocked:    {Code: ErrUserBlocked, Message: "You are blocked."},
	ErrRoomNotAllowed: {Code: ErrRoomNotAllowed, Message: "You are not allowed to join this room."},

	// 5xxx: Internal system errors
	ErrUnknown:      {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStoreFailure: {Code: ErrStoreFailure, Message: "Service is temporarily unavailable. Please try again.", Status: http.StatusInternalServerError},
}
