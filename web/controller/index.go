package controller

import (
	"net/http"
	"text/template"

	"github.com/trojan-ui/trojan-ui/caching"
	"github.com/trojan-ui/trojan-ui/logger"
	"github.com/trojan-ui/trojan-ui/web/entity"
	"github.com/trojan-ui/trojan-ui/web/service"

	"github.com/gin-gonic/gin"
)

var registerErrors = errorKeys{
	service.ErrCapacityExceeded: "pages.register.toasts.capacity",
	service.ErrValidation:       "pages.register.toasts.invalid",
	service.ErrDuplicate:        "pages.register.toasts.duplicate",
}

// IndexController handles the unauthenticated login and registration routes.
type IndexController struct {
	userService  *service.UserService
	authService  *service.AuthService
	loginLimiter *caching.LoginLimiter
}

// NewIndexController creates a new IndexController and initializes its routes.
func NewIndexController(
	g *gin.RouterGroup,
	userService *service.UserService,
	authService *service.AuthService,
	loginLimiter *caching.LoginLimiter,
) *IndexController {
	a := &IndexController{userService: userService, authService: authService, loginLimiter: loginLimiter}
	a.initRouter(g)
	return a
}

func (a *IndexController) initRouter(g *gin.RouterGroup) {
	g.POST("/login", a.login)
	g.POST("/register", a.register)
}

// login checks the credentials and hands out a bearer token.
func (a *IndexController) login(c *gin.Context) {
	var form entity.LoginRequest

	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusOK, false, I18nWeb(c, "pages.login.toasts.invalidFormData"))
		return
	}
	if form.Username == "" {
		pureJsonMsg(c, http.StatusOK, false, I18nWeb(c, "pages.login.toasts.emptyUsername"))
		return
	}
	if form.Password == "" {
		pureJsonMsg(c, http.StatusOK, false, I18nWeb(c, "pages.login.toasts.emptyPassword"))
		return
	}

	remoteIp := getRemoteIp(c)
	if !a.loginLimiter.Allowed(remoteIp) {
		logger.Warningf("too many failed logins from %s", remoteIp)
		pureJsonMsg(c, http.StatusTooManyRequests, false, I18nWeb(c, "pages.login.toasts.tooManyAttempts"))
		return
	}

	safeUser := template.HTMLEscapeString(form.Username)
	user, err := a.userService.Login(c.Request.Context(), form.Username, form.Password, form.TwoFactorCode)
	if err != nil {
		failures := a.loginLimiter.Fail(remoteIp)
		logger.Warningf("wrong username: \"%s\", IP: \"%s\", failures: %d", safeUser, remoteIp, failures)
		pureJsonMsg(c, http.StatusOK, false, I18nWeb(c, "pages.login.toasts.wrongUsernameOrPassword"))
		return
	}
	a.loginLimiter.Reset(remoteIp)

	token, err := a.authService.IssueToken(user)
	if err != nil {
		logger.Error("issue token failed:", err)
		pureJsonMsg(c, http.StatusOK, false, I18nWeb(c, "somethingWentWrong"))
		return
	}

	logger.Infof("%s logged in successfully, Ip Address: %s", safeUser, remoteIp)
	jsonMsgObj(c, I18nWeb(c, "pages.login.toasts.successLogin"), entity.LoginResponse{
		Token:    token,
		Username: user.Username,
	}, nil)
}

func (a *IndexController) register(c *gin.Context) {
	var form entity.RegisterRequest

	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusOK, false, I18nWeb(c, "pages.login.toasts.invalidFormData"))
		return
	}

	safeUser := template.HTMLEscapeString(form.Username)
	if err := a.userService.Register(c.Request.Context(), &form); err != nil {
		logger.Infof("registration of \"%s\" from %s refused: %v", safeUser, getRemoteIp(c), err)
		jsonErr(c, registerErrors, err)
		return
	}
	logger.Infof("\"%s\" registered from %s", safeUser, getRemoteIp(c))
	jsonMsg(c, I18nWeb(c, "pages.register.toasts.success"), nil)
}
