package controller

import (
	"errors"
	"net/http"

	"github.com/trojan-ui/trojan-ui/logger"
	"github.com/trojan-ui/trojan-ui/web/entity"
	"github.com/trojan-ui/trojan-ui/web/service"

	"github.com/gin-gonic/gin"
)

// TrustProxies limits which peers may set the client address through
// X-Real-IP or X-Forwarded-For. With no proxies every request is identified
// by its socket address.
func TrustProxies(engine *gin.Engine, proxies []string) error {
	engine.RemoteIPHeaders = []string{"X-Real-IP", "X-Forwarded-For"}
	if len(proxies) == 0 {
		return engine.SetTrustedProxies(nil)
	}
	return engine.SetTrustedProxies(proxies)
}

// getRemoteIp returns the client address. Forwarding headers only count when
// the request comes through one of the engine's trusted proxies.
func getRemoteIp(c *gin.Context) string {
	return c.ClientIP()
}

// jsonMsg sends a JSON response with a message and error status.
func jsonMsg(c *gin.Context, msg string, err error) {
	jsonMsgObj(c, msg, nil, err)
}

// jsonObj sends a JSON response with an object and error status.
func jsonObj(c *gin.Context, obj any, err error) {
	jsonMsgObj(c, "", obj, err)
}

// jsonMsgObj sends a JSON response with a message, object, and error status.
func jsonMsgObj(c *gin.Context, msg string, obj any, err error) {
	m := entity.Msg{
		Obj: obj,
	}
	if err == nil {
		m.Success = true
		if msg != "" {
			m.Msg = msg
		}
	} else {
		m.Success = false
		m.Msg = msg + " (" + err.Error() + ")"
		logger.Warning(msg+" "+I18nWeb(c, "fail")+": ", err)
	}
	c.JSON(http.StatusOK, m)
}

// pureJsonMsg sends a pure JSON message response with custom status code.
func pureJsonMsg(c *gin.Context, statusCode int, success bool, msg string) {
	c.JSON(statusCode, entity.Msg{
		Success: success,
		Msg:     msg,
	})
}

// errorKeys maps service errors to translation keys for one kind of object.
type errorKeys map[error]string

// jsonErr reports a failed operation. Store failures only ever show a
// generic message; their detail is already in the log.
func jsonErr(c *gin.Context, keys errorKeys, err error) {
	if errors.Is(err, service.ErrStoreFailure) {
		pureJsonMsg(c, http.StatusOK, false, I18nWeb(c, "somethingWentWrong"))
		return
	}
	if errors.Is(err, service.ErrUnauthorized) {
		logger.Warningf("denied %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		pureJsonMsg(c, http.StatusOK, false, I18nWeb(c, "pages.login.noPermission"))
		return
	}
	for target, key := range keys {
		if errors.Is(err, target) {
			jsonMsg(c, I18nWeb(c, key), err)
			return
		}
	}
	jsonMsg(c, I18nWeb(c, "fail"), err)
}
