package handler

import (
	"geochat/internal/app/chat"
	"geochat/internal/app/user"
	"geochat/internal/configs"
)

// AppDeps carries the wired services the handlers need.
type AppDeps struct {
	Gateway *chat.Gateway
	Users   user.Store
	Config  *configs.AppConfig
}
