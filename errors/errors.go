package errors

import "fmt"

var (
	ErrRoomNotFound       = fmt.Errorf("room not found")
	ErrRoomExpired        = fmt.Errorf("room expired")
	ErrRoomFull           = fmt.Errorf("room at capacity")
	ErrCodeSpaceExhausted = fmt.Errorf("room code space exhausted")
	ErrInvalidKind        = fmt.Errorf("unknown room kind")
	ErrInvalidExpiry      = fmt.Errorf("expiry must be strictly in the future and within the ceiling")
	ErrNotJoined          = fmt.Errorf("session has not joined a room")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)
