package controller

import (
	"errors"
	"net/http"

	"github.com/trojan-ui/trojan-ui/web/entity"
	"github.com/trojan-ui/trojan-ui/web/service"

	"github.com/gin-gonic/gin"
)

// NodeAgentController is the feed relay agents poll for their user list and
// push traffic to. Agents authenticate with HTTP basic auth using the node
// name and the credential returned when the node was added.
type NodeAgentController struct {
	nodeService *service.NodeService
}

func NewNodeAgentController(g *gin.RouterGroup, nodeService *service.NodeService) *NodeAgentController {
	a := &NodeAgentController{nodeService: nodeService}
	a.initRouter(g)
	return a
}

func (a *NodeAgentController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/node")

	g.GET("/users", a.users)
	g.POST("/traffic", a.traffic)
}

func agentError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrUnauthorized) {
		pureJsonMsg(c, http.StatusUnauthorized, false, "unauthorized")
		return
	}
	if errors.Is(err, service.ErrStoreFailure) {
		pureJsonMsg(c, http.StatusInternalServerError, false, "internal error")
		return
	}
	pureJsonMsg(c, http.StatusBadRequest, false, err.Error())
}

func (a *NodeAgentController) users(c *gin.Context) {
	name, password, _ := c.Request.BasicAuth()
	users, err := a.nodeService.NodeUsers(c.Request.Context(), name, password)
	if err != nil {
		agentError(c, err)
		return
	}
	jsonObj(c, users, nil)
}

func (a *NodeAgentController) traffic(c *gin.Context) {
	name, password, _ := c.Request.BasicAuth()
	var report entity.TrafficReport
	if err := c.ShouldBindJSON(&report); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, false, "invalid traffic report")
		return
	}
	if err := a.nodeService.ReportTraffic(c.Request.Context(), name, password, report.Records); err != nil {
		agentError(c, err)
		return
	}
	jsonMsg(c, "", nil)
}
