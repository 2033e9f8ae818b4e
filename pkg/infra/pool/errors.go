package pool

import "errors"

var (
	// ErrPoolClosed 池已关闭。
	ErrPoolClosed = errors.New("池已关闭")
	// ErrInvalidPoolConfig 无效的池配置。
	ErrInvalidPoolConfig = errors.New("无效的池配置")
)
