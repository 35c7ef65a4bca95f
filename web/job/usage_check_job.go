package job

import (
	"context"

	"github.com/trojan-ui/trojan-ui/database"
	"github.com/trojan-ui/trojan-ui/logger"
	"github.com/trojan-ui/trojan-ui/util/common"
	"github.com/trojan-ui/trojan-ui/web/service"

	"go.uber.org/atomic"
)

// UsageCheckJob re-evaluates every user's quota and expiry and toggles
// their assignments accordingly.
type UsageCheckJob struct {
	store        database.EntitlementStore
	usageService *service.UsageService
	running      atomic.Bool
}

// NewUsageCheckJob creates a new usage check job instance.
func NewUsageCheckJob(store database.EntitlementStore, usageService *service.UsageService) *UsageCheckJob {
	return &UsageCheckJob{store: store, usageService: usageService}
}

// Run is skipped while a previous run is still in progress.
func (j *UsageCheckJob) Run() {
	if !j.running.CompareAndSwap(false, true) {
		logger.Debug("usage check still running, skipping tick")
		return
	}
	defer j.running.Store(false)
	defer common.Recover("usage check job")

	changed, err := j.usageService.CheckAll(context.Background(), j.store)
	if err != nil {
		logger.Warning("usage check failed:", err)
		return
	}
	if changed > 0 {
		logger.Infof("usage check changed the status of %d users", changed)
	}
}
