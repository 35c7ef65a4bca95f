package controller

import (
	"net/http"

	"github.com/trojan-ui/trojan-ui/logger"
	"github.com/trojan-ui/trojan-ui/web/entity"
	"github.com/trojan-ui/trojan-ui/web/service"

	"github.com/gin-gonic/gin"
)

var nodeErrors = errorKeys{
	service.ErrNotFound:   "pages.nodes.toasts.notFound",
	service.ErrDuplicate:  "pages.nodes.toasts.duplicate",
	service.ErrValidation: "pages.nodes.toasts.invalid",
}

// NodeController handles relay node administration for super admins.
type NodeController struct {
	nodeService *service.NodeService
}

// NewNodeController creates a new NodeController and sets up its routes.
func NewNodeController(g *gin.RouterGroup, nodeService *service.NodeService) *NodeController {
	a := &NodeController{nodeService: nodeService}
	a.initRouter(g)
	return a
}

func (a *NodeController) initRouter(g *gin.RouterGroup) {
	g.GET("", a.getNodes)
	g.POST("", a.addNode)
	g.POST("/del", a.deleteNode)
}

func (a *NodeController) getNodes(c *gin.Context) {
	nodes, err := a.nodeService.ListNodes(c.Request.Context())
	if err != nil {
		jsonErr(c, nodeErrors, err)
		return
	}
	jsonObj(c, nodes, nil)
}

// addNode returns the new node's agent credential; it is only shown once.
func (a *NodeController) addNode(c *gin.Context) {
	var req entity.NodeRequest
	if err := c.ShouldBind(&req); err != nil {
		pureJsonMsg(c, http.StatusOK, false, I18nWeb(c, "pages.login.toasts.invalidFormData"))
		return
	}
	cred, err := a.nodeService.AddNode(c.Request.Context(), &req)
	if err != nil {
		jsonErr(c, nodeErrors, err)
		return
	}
	jsonMsgObj(c, I18nWeb(c, "pages.nodes.toasts.add"), cred, nil)
}

func (a *NodeController) deleteNode(c *gin.Context) {
	var req entity.NodeRequest
	if err := c.ShouldBind(&req); err != nil {
		pureJsonMsg(c, http.StatusOK, false, I18nWeb(c, "pages.login.toasts.invalidFormData"))
		return
	}
	if err := a.nodeService.DeleteNode(c.Request.Context(), req.Name); err != nil {
		jsonErr(c, nodeErrors, err)
		return
	}
	logger.Infof("node %s deleted from %s", req.Name, getRemoteIp(c))
	jsonMsg(c, I18nWeb(c, "pages.nodes.toasts.delete"), nil)
}
