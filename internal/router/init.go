package router

import (
	userapp "github.com/sessionkit/identity-service/internal/application"
	"github.com/sessionkit/identity-service/internal/container"
	repouser "github.com/sessionkit/identity-service/internal/domain/repository"
	pginfra "github.com/sessionkit/identity-service/internal/infrastructure/postgres"
	handlers "github.com/sessionkit/identity-service/internal/interface/http"
	"github.com/sessionkit/identity-service/internal/router/modules"
)

type UserModuleDeps struct {
	Repo    repouser.UserRepository
	Service *userapp.Service
	Handler *handlers.UserHandler
}

func buildUserDeps() UserModuleDeps {
	repo := pginfra.NewUserRepository(container.GetPGPool())

	service := userapp.NewService(
		repo,
		container.GetGCS(),
		container.GetConfig().GCSBucket,
		container.GetLogger(),
		container.GetES(),
		container.GetConfig().ESUsersIndex,
	)

	handler := handlers.NewUserHandler(service, container.GetLogger())

	return UserModuleDeps{
		Repo:    repo,
		Service: service,
		Handler: handler,
	}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	userDeps := buildUserDeps()
	r.Add(modules.NewUserModule(userDeps.Handler))
	r.Add(modules.NewDebugModule())
}
