package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/sessionkit/identity-service/internal/interface/http"
)

// UserModule wires the account routes.
// GET    /api/user/:id
// GET    /api/user
// POST   /api/user
// PATCH  /api/user/update/:id
// DELETE /api/user/delete/:id
// POST   /api/user/:id/avatar
// GET    /api/user/search
type UserModule struct {
	Handler *handlers.UserHandler
}

func NewUserModule(h *handlers.UserHandler) *UserModule {
	return &UserModule{Handler: h}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	user := rg.Group("/user")
	{
		user.GET("/search", m.Handler.Search)
		user.GET("/:id", m.Handler.FindByID)
		user.GET("", m.Handler.GetAll)
		user.POST("", m.Handler.Create)
		user.PATCH("/update/:id", m.Handler.Update)
		user.DELETE("/delete/:id", m.Handler.Delete)
		user.POST("/:id/avatar", m.Handler.UploadAvatar)
	}
}
