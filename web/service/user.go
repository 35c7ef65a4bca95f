package service

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/skip2/go-qrcode"
	"github.com/trojan-ui/trojan-ui/database"
	"github.com/trojan-ui/trojan-ui/database/model"
	"github.com/trojan-ui/trojan-ui/logger"
	"github.com/trojan-ui/trojan-ui/util/common"
	"github.com/trojan-ui/trojan-ui/util/crypto"
	"github.com/trojan-ui/trojan-ui/util/random"
	"github.com/trojan-ui/trojan-ui/web/entity"

	"github.com/xlzd/gotp"
)

const (
	dateLayout       = "2006-01-02"
	permanentExpiry  = "permanent"
	subscribePath    = "/user/subscribe"
	qrCodeSize       = 256
	secretMinLength  = 8
	secretMaxLength  = 16
	unlimitedUserNum = -1
)

var (
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{4,16}$`)
	passwordRegex = regexp.MustCompile(`^[\x21-\x7e]{6,32}$`)
	validate      = validator.New()
)

// UserService owns the account lifecycle: registration, login and the
// administrative operations on users.
type UserService struct {
	store            database.EntitlementStore
	settingService   SettingService
	nodeService      *NodeService
	reconcileService *ReconcileService
	usageService     *UsageService
	renderer         *LinkRenderer
}

func NewUserService(
	store database.EntitlementStore,
	nodeService *NodeService,
	reconcileService *ReconcileService,
	usageService *UsageService,
	renderer *LinkRenderer,
) *UserService {
	return &UserService{
		store:            store,
		nodeService:      nodeService,
		reconcileService: reconcileService,
		usageService:     usageService,
		renderer:         renderer,
	}
}

func newSubscribeSecret() string {
	return random.SeqRange(secretMinLength, secretMaxLength)
}

// checkCapacity fails once the configured registration cap is reached.
func (s *UserService) checkCapacity(ctx context.Context, store database.EntitlementStore) error {
	maxNum, err := s.settingService.GetUserMaxNum()
	if err != nil {
		return storeFailure("get user max num", err)
	}
	if maxNum == unlimitedUserNum {
		return nil
	}
	count, err := store.CountUsers(ctx)
	if err != nil {
		return storeFailure("count users", err)
	}
	if count >= int64(maxNum) {
		return ErrCapacityExceeded
	}
	return nil
}

func validateRegistration(req *entity.RegisterRequest) error {
	if !usernameRegex.MatchString(req.Username) {
		return fmt.Errorf("%w: username must be 4-16 letters, digits or underscores", ErrValidation)
	}
	if !passwordRegex.MatchString(req.Password) {
		return fmt.Errorf("%w: password must be 6-32 printable characters", ErrValidation)
	}
	if req.Email != "" {
		if err := validate.Var(req.Email, "email"); err != nil {
			return fmt.Errorf("%w: email", ErrValidation)
		}
	}
	return nil
}

// Register creates an account. The capacity check runs before any input
// validation. The first account ever created becomes the super admin and
// brings up the local node.
func (s *UserService) Register(ctx context.Context, req *entity.RegisterRequest) error {
	if err := s.checkCapacity(ctx, s.store); err != nil {
		return err
	}
	if err := validateRegistration(req); err != nil {
		return err
	}
	hash, err := crypto.HashPasswordAsBcrypt(req.Password)
	if err != nil {
		return err
	}

	user := &model.User{
		Username:        req.Username,
		Password:        hash,
		Email:           req.Email,
		Permission:      model.PermissionUser,
		Quota:           model.UnlimitedQuota,
		SubscribeSecret: newSubscribeSecret(),
		Status:          model.UserActive,
	}
	err = s.store.Transaction(ctx, func(tx database.EntitlementStore) error {
		if err := s.checkCapacity(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.GetUser(ctx, req.Username); err == nil {
			return fmt.Errorf("%w: user %s", ErrDuplicate, req.Username)
		} else if !database.IsNotFound(err) {
			return storeFailure("get user", err)
		}
		count, err := tx.CountUsers(ctx)
		if err != nil {
			return storeFailure("count users", err)
		}
		if count == 0 {
			if err := s.bootstrap(ctx, tx, user); err != nil {
				return err
			}
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return storeFailure("create user", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Infof("user %s registered with permission %d", user.Username, user.Permission)
	return nil
}

func (s *UserService) bootstrap(ctx context.Context, tx database.EntitlementStore, user *model.User) error {
	user.Permission = model.PermissionSuperAdmin
	return s.nodeService.ProvisionLocalNode(ctx, tx)
}

// Login verifies a password and, when enabled, the TOTP code. Every failure
// is reported as ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, username, password, twoFactorCode string) (*model.User, error) {
	user, err := s.store.GetUser(ctx, username)
	if err != nil && !database.IsNotFound(err) {
		logger.Warning("check user err:", err)
		return nil, ErrInvalidCredentials
	}
	hash := ""
	if user != nil {
		hash = user.Password
	}
	if !crypto.CheckPasswordHash(hash, password) {
		return nil, ErrInvalidCredentials
	}

	twoFactorEnable, err := s.settingService.GetTwoFactorEnable()
	if err != nil {
		logger.Warning("check two factor err:", err)
		return nil, ErrInvalidCredentials
	}
	if twoFactorEnable {
		twoFactorToken, err := s.settingService.GetTwoFactorToken()
		if err != nil {
			logger.Warning("check two factor token err:", err)
			return nil, ErrInvalidCredentials
		}
		if gotp.NewDefaultTOTP(twoFactorToken).Now() != twoFactorCode {
			return nil, ErrInvalidCredentials
		}
	}
	return user, nil
}

// GetUser returns the account or ErrNotFound.
func (s *UserService) GetUser(ctx context.Context, username string) (*model.User, error) {
	return getUser(ctx, s.store, username)
}

func quotaString(quota int64) string {
	if quota == model.UnlimitedQuota {
		return entity.UnlimitedQuota
	}
	return common.FormatTraffic(quota)
}

func expiryString(expiry *time.Time) string {
	if expiry == nil {
		return permanentExpiry
	}
	return expiry.Format(dateLayout)
}

func (s *UserService) ListUsers(ctx context.Context) (*entity.UserListResponse, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, storeFailure("list users", err)
	}
	allNodes, err := allNodeNames(ctx, s.store)
	if err != nil {
		return nil, storeFailure("list nodes", err)
	}

	resp := &entity.UserListResponse{
		Users:    make([]entity.UserInfo, 0, len(users)),
		NodeList: allNodes,
	}
	for _, user := range users {
		assignments, err := s.store.ListAssignments(ctx, user.Username)
		if err != nil {
			return nil, storeFailure("list assignments", err)
		}
		info := entity.UserInfo{
			Username:   user.Username,
			Email:      user.Email,
			Permission: user.Permission,
			Quota:      quotaString(user.Quota),
			ExpiryDate: expiryString(user.ExpiryDate),
			Status:     string(user.Status),
			Nodes:      make([]string, 0, len(assignments)),
		}
		var upload, download int64
		for _, a := range assignments {
			info.Nodes = append(info.Nodes, a.NodeName)
			upload += a.Upload
			download += a.Download
		}
		info.Upload = common.FormatTraffic(upload)
		info.Download = common.FormatTraffic(download)
		info.Total = common.FormatTraffic(upload + download)
		resp.Users = append(resp.Users, info)
	}
	return resp, nil
}

func validPermission(p int) bool {
	return p == model.PermissionUser || p == model.PermissionAdmin || p == model.PermissionSuperAdmin
}

// checkActor rejects changes to accounts ranked above the actor.
func checkActor(actor, target *model.User) error {
	if actor != nil && actor.Permission < target.Permission {
		return fmt.Errorf("%w: %s outranks %s", ErrUnauthorized, target.Username, actor.Username)
	}
	return nil
}

func userFields(actor *model.User, data *entity.UserData) (map[string]any, error) {
	fields := make(map[string]any)
	if data.Permission != nil {
		p := *data.Permission
		if !validPermission(p) {
			return nil, fmt.Errorf("%w: permission %d", ErrValidation, p)
		}
		if actor != nil && p > actor.Permission {
			return nil, fmt.Errorf("%w: cannot grant permission %d", ErrUnauthorized, p)
		}
		fields["permission"] = p
	}
	if data.Quota != nil {
		q := int64(*data.Quota)
		if q < model.UnlimitedQuota {
			return nil, fmt.Errorf("%w: quota %d", ErrValidation, q)
		}
		fields["quota"] = q
	}
	// An absent expiry date means permanent, like "" and "permanent".
	if data.ExpiryDate == nil || *data.ExpiryDate == "" || *data.ExpiryDate == permanentExpiry {
		fields["expiry_date"] = nil
	} else {
		expiry, err := time.ParseInLocation(dateLayout, *data.ExpiryDate, time.Local)
		if err != nil {
			return nil, fmt.Errorf("%w: expiry date %q", ErrValidation, *data.ExpiryDate)
		}
		fields["expiry_date"] = expiry
	}
	return fields, nil
}

// UpdateUser rewrites a user's attributes and node set. A nil NodeList
// leaves the node set alone; reconciliation only runs when the submitted
// set differs from the current one.
func (s *UserService) UpdateUser(ctx context.Context, actor *model.User, req *entity.UpdateUserRequest) error {
	fields, err := userFields(actor, &req.UserData)
	if err != nil {
		return err
	}

	var result *ReconcileResult
	err = s.store.Transaction(ctx, func(tx database.EntitlementStore) error {
		target, err := getUser(ctx, tx, req.Username)
		if err != nil {
			return err
		}
		if err := checkActor(actor, target); err != nil {
			return err
		}
		if err := tx.UpdateUser(ctx, req.Username, fields); err != nil {
			return storeFailure("update user", err)
		}

		if req.NodeList != nil {
			current, err := assignedNodeNames(ctx, tx, req.Username)
			if err != nil {
				return storeFailure("list assignments", err)
			}
			if !newNameSet(current).equal(newNameSet(req.NodeList)) {
				result, err = s.reconcileService.reconcileTx(ctx, tx, req.Username, req.NodeList)
				if err != nil {
					return err
				}
			}
		}
		if result == nil || !result.Changed() {
			if _, err := s.usageService.CheckUser(ctx, tx, req.Username); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Infof("user %s updated by %s: %v", req.Username, actorName(actor), fieldNames(fields))
	if result != nil && result.Changed() {
		logger.Infof("user %s nodes: +%v -%v", req.Username, result.Inserted, result.Deleted)
	}
	return nil
}

// DeleteUser removes the user, their assignments and refreshes the counters
// of the nodes they were on, all in one transaction.
func (s *UserService) DeleteUser(ctx context.Context, actor *model.User, username string) error {
	err := s.store.Transaction(ctx, func(tx database.EntitlementStore) error {
		target, err := getUser(ctx, tx, username)
		if err != nil {
			return err
		}
		if err := checkActor(actor, target); err != nil {
			return err
		}
		nodes, err := tx.DeleteUserAssignments(ctx, username)
		if err != nil {
			return storeFailure("delete user assignments", err)
		}
		if err := tx.DeleteUser(ctx, username); err != nil {
			return storeFailure("delete user", err)
		}
		return refreshNodes(ctx, tx, nodes)
	})
	if err != nil {
		return err
	}
	logger.Infof("user %s deleted by %s", username, actorName(actor))
	return nil
}

func subscribeQuery(username, secret string) string {
	return subscribePath + "?u=" + url.QueryEscape(username) + "&p=" + url.QueryEscape(secret)
}

// GetTrojanUrls returns the user's share links and their relative
// subscription link, which is empty when no secret is set.
func (s *UserService) GetTrojanUrls(ctx context.Context, username string) (*entity.TrojanUrlsResponse, error) {
	user, err := getUser(ctx, s.store, username)
	if err != nil {
		return nil, err
	}
	assignments, err := s.store.ListAssignments(ctx, username)
	if err != nil {
		return nil, storeFailure("list assignments", err)
	}
	nodes, err := s.store.ListNodes(ctx)
	if err != nil {
		return nil, storeFailure("list nodes", err)
	}

	resp := &entity.TrojanUrlsResponse{
		TrojanUrls: URIs(s.renderer.Resolve(assignments, nodes)),
	}
	if user.SubscribeSecret != "" {
		resp.SubscribeLink = subscribeQuery(user.Username, user.SubscribeSecret)
	}
	return resp, nil
}

// ResetSubscribe rotates the subscription secret, invalidating old links.
func (s *UserService) ResetSubscribe(ctx context.Context, actor *model.User, username string) error {
	target, err := getUser(ctx, s.store, username)
	if err != nil {
		return err
	}
	if err := checkActor(actor, target); err != nil {
		return err
	}
	err = s.store.UpdateUser(ctx, username, map[string]any{"subscribe_secret": newSubscribeSecret()})
	if database.IsNotFound(err) {
		return ErrNotFound
	} else if err != nil {
		return storeFailure("reset subscribe secret", err)
	}
	logger.Infof("subscribe secret of %s reset by %s", username, actorName(actor))
	return nil
}

// SubscribeQRCode renders the absolute subscription link as a PNG.
func (s *UserService) SubscribeQRCode(ctx context.Context, username string) ([]byte, error) {
	user, err := getUser(ctx, s.store, username)
	if err != nil {
		return nil, err
	}
	if user.SubscribeSecret == "" {
		return nil, fmt.Errorf("%w: no subscribe secret", ErrNotFound)
	}
	domain, err := s.settingService.GetWebDomain()
	if err != nil {
		return nil, storeFailure("get web domain", err)
	}
	link := "https://" + domain + subscribeQuery(user.Username, user.SubscribeSecret)
	return qrcode.Encode(link, qrcode.Medium, qrCodeSize)
}

func actorName(actor *model.User) string {
	if actor == nil {
		return "system"
	}
	return actor.Username
}

func fieldNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
