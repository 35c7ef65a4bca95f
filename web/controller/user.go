package controller

import (
	"net/http"

	"github.com/trojan-ui/trojan-ui/web/entity"
	"github.com/trojan-ui/trojan-ui/web/middleware"
	"github.com/trojan-ui/trojan-ui/web/service"

	"github.com/gin-gonic/gin"
)

var userErrors = errorKeys{
	service.ErrNotFound:   "pages.users.toasts.notFound",
	service.ErrValidation: "pages.users.toasts.invalid",
}

// UserController exposes user administration to tier 4 and above.
type UserController struct {
	userService *service.UserService
}

func NewUserController(g *gin.RouterGroup, userService *service.UserService) *UserController {
	a := &UserController{userService: userService}
	a.initRouter(g)
	return a
}

func (a *UserController) initRouter(g *gin.RouterGroup) {
	g.GET("", a.list)
	g.PUT("", a.update)
	g.POST("/del", a.delete)
	g.GET("/trojan_url", a.trojanUrl)
	g.POST("/subscribe", a.resetSubscribe)
	g.GET("/qrcode", a.qrcode)
}

func (a *UserController) list(c *gin.Context) {
	resp, err := a.userService.ListUsers(c.Request.Context())
	if err != nil {
		jsonErr(c, userErrors, err)
		return
	}
	jsonObj(c, resp, nil)
}

func (a *UserController) update(c *gin.Context) {
	var req entity.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		pureJsonMsg(c, http.StatusOK, false, I18nWeb(c, "pages.login.toasts.invalidFormData"))
		return
	}
	err := a.userService.UpdateUser(c.Request.Context(), middleware.GetLoginUser(c), &req)
	if err != nil {
		jsonErr(c, userErrors, err)
		return
	}
	jsonMsg(c, I18nWeb(c, "pages.users.toasts.update"), nil)
}

func (a *UserController) delete(c *gin.Context) {
	var req entity.UsernameRequest
	if err := c.ShouldBind(&req); err != nil {
		pureJsonMsg(c, http.StatusOK, false, I18nWeb(c, "pages.login.toasts.invalidFormData"))
		return
	}
	err := a.userService.DeleteUser(c.Request.Context(), middleware.GetLoginUser(c), req.Username)
	if err != nil {
		jsonErr(c, userErrors, err)
		return
	}
	jsonMsg(c, I18nWeb(c, "pages.users.toasts.delete"), nil)
}

func (a *UserController) trojanUrl(c *gin.Context) {
	resp, err := a.userService.GetTrojanUrls(c.Request.Context(), c.Query("username"))
	if err != nil {
		jsonErr(c, userErrors, err)
		return
	}
	jsonObj(c, resp, nil)
}

func (a *UserController) resetSubscribe(c *gin.Context) {
	var req entity.UsernameRequest
	if err := c.ShouldBind(&req); err != nil {
		pureJsonMsg(c, http.StatusOK, false, I18nWeb(c, "pages.login.toasts.invalidFormData"))
		return
	}
	err := a.userService.ResetSubscribe(c.Request.Context(), middleware.GetLoginUser(c), req.Username)
	if err != nil {
		jsonErr(c, userErrors, err)
		return
	}
	jsonMsg(c, I18nWeb(c, "pages.users.toasts.resetSubscribe"), nil)
}

func (a *UserController) qrcode(c *gin.Context) {
	png, err := a.userService.SubscribeQRCode(c.Request.Context(), c.Query("username"))
	if err != nil {
		jsonErr(c, userErrors, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
