package service

import (
	_ "embed"
	"strconv"
	"strings"
	"time"

	"github.com/trojan-ui/trojan-ui/database"
	"github.com/trojan-ui/trojan-ui/database/model"
	"github.com/trojan-ui/trojan-ui/logger"
	"github.com/trojan-ui/trojan-ui/util/common"
	"github.com/trojan-ui/trojan-ui/util/random"
)

//go:embed clash.yaml
var clashTemplate string

var defaultValueMap = map[string]string{
	"clashTemplate":    clashTemplate,
	"webListen":        "",
	"webPort":          "2083",
	"webDomain":        "localhost",
	"jwtSecret":        random.Seq(32),
	"tokenExpiryHours": "24",
	"userMaxNum":       "-1",
	"usageCheckCron":   "@every 1m",
	"timeLocation":     "UTC",
	"twoFactorEnable":  "false",
	"twoFactorToken":   "",
	"trustedProxies":   "",
}

// SettingService reads and writes panel settings stored in the settings
// table, falling back to defaultValueMap for keys never saved.
type SettingService struct{}

// ResetSettings removes every stored setting so defaults apply again.
func (s *SettingService) ResetSettings() error {
	db := database.GetDB()
	return db.Where("1 = 1").Delete(&model.Setting{}).Error
}

func (s *SettingService) getSetting(key string) (*model.Setting, error) {
	db := database.GetDB()
	setting := &model.Setting{}
	err := db.Model(&model.Setting{}).Where("key = ?", key).First(setting).Error
	if err != nil {
		return nil, err
	}
	return setting, nil
}

func (s *SettingService) saveSetting(key string, value string) error {
	setting, err := s.getSetting(key)
	db := database.GetDB()
	if database.IsNotFound(err) {
		return db.Create(&model.Setting{
			Key:   key,
			Value: value,
		}).Error
	} else if err != nil {
		return err
	}
	setting.Key = key
	setting.Value = value
	return db.Save(setting).Error
}

func (s *SettingService) getString(key string) (string, error) {
	setting, err := s.getSetting(key)
	if database.IsNotFound(err) {
		value, ok := defaultValueMap[key]
		if !ok {
			return "", common.NewErrorf("key <%v> not in defaultValueMap", key)
		}
		return value, nil
	} else if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (s *SettingService) setString(key string, value string) error {
	return s.saveSetting(key, value)
}

func (s *SettingService) getBool(key string) (bool, error) {
	str, err := s.getString(key)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(str)
}

func (s *SettingService) setBool(key string, value bool) error {
	return s.setString(key, strconv.FormatBool(value))
}

func (s *SettingService) getInt(key string) (int, error) {
	str, err := s.getString(key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(str)
}

func (s *SettingService) setInt(key string, value int) error {
	return s.setString(key, strconv.Itoa(value))
}

func (s *SettingService) GetClashTemplate() (string, error) {
	return s.getString("clashTemplate")
}

func (s *SettingService) SetClashTemplate(template string) error {
	return s.setString("clashTemplate", template)
}

func (s *SettingService) GetListen() (string, error) {
	return s.getString("webListen")
}

func (s *SettingService) SetListen(ip string) error {
	return s.setString("webListen", ip)
}

func (s *SettingService) GetPort() (int, error) {
	return s.getInt("webPort")
}

func (s *SettingService) SetPort(port int) error {
	return s.setInt("webPort", port)
}

// GetWebDomain returns the public domain substituted for nodes whose domain
// is "localhost".
func (s *SettingService) GetWebDomain() (string, error) {
	return s.getString("webDomain")
}

func (s *SettingService) SetWebDomain(domain string) error {
	return s.setString("webDomain", domain)
}

// GetTrustedProxies returns the proxy addresses or CIDRs whose forwarding
// headers are believed. Empty means clients are identified by their socket
// address only.
func (s *SettingService) GetTrustedProxies() ([]string, error) {
	value, err := s.getString("trustedProxies")
	if err != nil {
		return nil, err
	}
	var proxies []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return proxies, nil
}

func (s *SettingService) SetTrustedProxies(proxies string) error {
	return s.setString("trustedProxies", proxies)
}

// GetUserMaxNum returns the registration cap; -1 disables it.
func (s *SettingService) GetUserMaxNum() (int, error) {
	return s.getInt("userMaxNum")
}

func (s *SettingService) SetUserMaxNum(n int) error {
	return s.setInt("userMaxNum", n)
}

// GetJwtSecret returns the token signing key, persisting the generated
// default on first use so tokens survive restarts.
func (s *SettingService) GetJwtSecret() ([]byte, error) {
	secret, err := s.getString("jwtSecret")
	if err != nil {
		return nil, err
	}
	if secret == defaultValueMap["jwtSecret"] {
		if err := s.saveSetting("jwtSecret", secret); err != nil {
			logger.Warning("save jwt secret failed:", err)
		}
	}
	return []byte(secret), nil
}

func (s *SettingService) GetTokenExpiry() (time.Duration, error) {
	hours, err := s.getInt("tokenExpiryHours")
	if err != nil {
		return 0, err
	}
	return time.Duration(hours) * time.Hour, nil
}

func (s *SettingService) GetUsageCheckCron() (string, error) {
	return s.getString("usageCheckCron")
}

func (s *SettingService) GetTimeLocation() (*time.Location, error) {
	l, err := s.getString("timeLocation")
	if err != nil {
		return nil, err
	}
	location, err := time.LoadLocation(l)
	if err != nil {
		defaultLocation := defaultValueMap["timeLocation"]
		logger.Errorf("location <%v> not exist, using default location: %v", l, defaultLocation)
		return time.LoadLocation(defaultLocation)
	}
	return location, nil
}

func (s *SettingService) GetTwoFactorEnable() (bool, error) {
	return s.getBool("twoFactorEnable")
}

func (s *SettingService) SetTwoFactorEnable(value bool) error {
	return s.setBool("twoFactorEnable", value)
}

func (s *SettingService) GetTwoFactorToken() (string, error) {
	return s.getString("twoFactorToken")
}

func (s *SettingService) SetTwoFactorToken(value string) error {
	return s.setString("twoFactorToken", value)
}
