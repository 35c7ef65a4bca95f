package controller

import (
	"strconv"

	"github.com/trojan-ui/trojan-ui/config"
	"github.com/trojan-ui/trojan-ui/logger"

	"github.com/gin-gonic/gin"
)

const defaultLogCount = 100

// ServerController exposes panel diagnostics to super admins.
type ServerController struct{}

func NewServerController(g *gin.RouterGroup) *ServerController {
	a := &ServerController{}
	a.initRouter(g)
	return a
}

func (a *ServerController) initRouter(g *gin.RouterGroup) {
	g.GET("/logs", a.getLogs)
	g.GET("/version", a.getVersion)
}

// getLogs returns the newest buffered log lines at or above level.
func (a *ServerController) getLogs(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", strconv.Itoa(defaultLogCount)))
	if err != nil || count <= 0 {
		count = defaultLogCount
	}
	level := c.DefaultQuery("level", "info")
	jsonObj(c, logger.GetLogs(count, level), nil)
}

func (a *ServerController) getVersion(c *gin.Context) {
	jsonObj(c, map[string]string{"name": config.GetName(), "version": config.GetVersion()}, nil)
}
