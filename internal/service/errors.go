package service

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotAuthorized 表示发起者不是目标房间的当前 admin
	ErrNotAuthorized = errors.New("user is not the current room admin")
	// ErrInvalidTarget 表示转移目标不是目标房间的当前成员
	ErrInvalidTarget  = errors.New("target user is not a member of the room")
	ErrInternalServer = errors.New("internal server error")
)
