package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrEmptyDictionary  = fmt.Errorf("no banned words have been found")
	ErrUnknownBackend   = fmt.Errorf("unknown store backend")
	ErrRoomNotFound     = fmt.Errorf("room not found")
	ErrUserNotFound     = fmt.Errorf("user not found")
	ErrFileAccessDenied = fmt.Errorf("file not found or not owned by sender")
	ErrMessageNotFound  = fmt.Errorf("message not found")
	ErrInvalidToken     = fmt.Errorf("invalid token")
	ErrInvalidFileData  = fmt.Errorf("file data is missing or malformed")
	ErrUnsupportedType  = fmt.Errorf("unsupported message type")
	ErrQueueFull        = fmt.Errorf("task queue is full")
)
