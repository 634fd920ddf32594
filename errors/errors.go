package errors

import "fmt"

var (
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrRoomNotFound       = fmt.Errorf("room not found")
	ErrUserAlreadyExists  = fmt.Errorf("username or email already taken")
	ErrAlreadyMember      = fmt.Errorf("user is already a member of the room")
	ErrUnauthorized       = fmt.Errorf("admin rights required")
	ErrInvalidCredentials = fmt.Errorf("invalid username or password")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrSinkSaturated      = fmt.Errorf("session sink saturated")
	ErrPersistence        = fmt.Errorf("persistence failure")
)
