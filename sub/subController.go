package sub

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SUBController serves GET /user/subscribe?u=&p=&t=.
type SUBController struct {
	subService *SubService
}

func NewSUBController(g *gin.RouterGroup, subService *SubService) *SUBController {
	a := &SUBController{subService: subService}
	a.initRouter(g)
	return a
}

func (a *SUBController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/user")

	g.GET("/subscribe", a.subscribe)
}

func (a *SUBController) subscribe(c *gin.Context) {
	body, contentType := a.subService.GetSubscription(
		c.Request.Context(),
		c.Query("u"),
		c.Query("p"),
		c.Query("t"),
	)
	c.Data(http.StatusOK, contentType, body)
}
