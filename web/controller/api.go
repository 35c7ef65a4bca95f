package controller

import (
	"github.com/trojan-ui/trojan-ui/database/model"
	"github.com/trojan-ui/trojan-ui/web/middleware"
	"github.com/trojan-ui/trojan-ui/web/service"

	"github.com/gin-gonic/gin"
)

// APIController mounts the authenticated panel API under /panel/api.
type APIController struct {
	userController   *UserController
	nodeController   *NodeController
	serverController *ServerController
}

// NewAPIController creates a new APIController instance and initializes its routes.
func NewAPIController(
	g *gin.RouterGroup,
	authService *service.AuthService,
	userService *service.UserService,
	nodeService *service.NodeService,
) *APIController {
	api := g.Group("/panel/api")
	api.Use(middleware.JWTAuth(authService, userService))

	users := api.Group("/users")
	users.Use(middleware.RequirePermission(model.PermissionAdmin))

	nodes := api.Group("/nodes")
	nodes.Use(middleware.RequirePermission(model.PermissionSuperAdmin))

	server := api.Group("/server")
	server.Use(middleware.RequirePermission(model.PermissionSuperAdmin))

	return &APIController{
		userController:   NewUserController(users, userService),
		nodeController:   NewNodeController(nodes, nodeService),
		serverController: NewServerController(server),
	}
}
