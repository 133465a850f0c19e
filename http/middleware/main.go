package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-review-orchestrator/http/controller"
)

type Middlewares struct {
	CORSMiddleware   gin.HandlerFunc
	AuthMiddleware   gin.HandlerFunc
	SignedMiddleware gin.HandlerFunc
}

func NewMiddlewares(ctrl *controller.Controller) (*Middlewares, error) {
	cors := CORSMiddleware(ctrl.Config.EnvConfig)
	var checker TokenChecker
	if ctrl.Infra.Authorization != nil {
		checker = ctrl.Infra.Authorization
	}
	auth := AuthMiddleware(checker, ctrl.Config.EnvConfig)
	signed := SignedMiddleware(ctrl.Config.EnvConfig)

	return &Middlewares{
		CORSMiddleware:   cors,
		AuthMiddleware:   auth,
		SignedMiddleware: signed,
	}, nil
}
