package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ibkr-relay/internal/gateway"
	"github.com/ibkr-relay/internal/metrics"
	"github.com/ibkr-relay/internal/models"
)

const (
	snapshotKey    = "relay:dashboard:snapshot"
	activityKey    = "relay:dashboard:activity"
	snapshotTTL    = 5 * time.Minute
	memoryActivity = 100
	redisActivity  = 200
)

// DashboardService maintains the display-only state behind the dashboard
// API: the broker account/position snapshot, replaced wholesale on every
// refresh, and a capped activity log. Both are mirrored to redis so the
// dashboard survives restarts; redis being down only costs persistence.
// Nothing here feeds back into the signal path.
type DashboardService struct {
	gateway gateway.OrderGateway
	redis   *redis.Client

	mu       sync.RWMutex
	snapshot models.DashboardSnapshot
	activity []models.ActivityEntry
}

// NewDashboardService creates a DashboardService and reloads the persisted
// activity log. redis may be nil in paper runs.
func NewDashboardService(gw gateway.OrderGateway, rdb *redis.Client) *DashboardService {
	s := &DashboardService{
		gateway:  gw,
		redis:    rdb,
		snapshot: models.DashboardSnapshot{Status: "Initializing..."},
	}
	s.loadActivity()
	return s
}

// Refresh polls the gateway's read-only accessors and swaps in a new
// snapshot. On failure the previous account data stays visible and only the
// status line changes.
func (s *DashboardService) Refresh(ctx context.Context) error {
	account, err := s.gateway.AccountSummary(ctx)
	if err != nil {
		s.setStatus(fmt.Sprintf("Error refreshing data: %v", err))
		return fmt.Errorf("account summary: %w", err)
	}

	positions, err := s.gateway.Positions(ctx)
	if err != nil {
		s.setStatus(fmt.Sprintf("Error refreshing data: %v", err))
		return fmt.Errorf("positions: %w", err)
	}

	now := time.Now()
	next := models.DashboardSnapshot{
		Status:    "Data successfully updated at " + now.Format("2006-01-02 15:04:05"),
		Account:   account,
		Positions: positions,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.snapshot = next
	s.mu.Unlock()

	metrics.SnapshotRefresh.Set(float64(now.Unix()))

	if s.redis != nil {
		data, err := json.Marshal(next)
		if err == nil {
			if err := s.redis.Set(ctx, snapshotKey, data, snapshotTTL).Err(); err != nil {
				log.Printf("[dashboard] snapshot cache write failed: %v", err)
			}
		}
	}

	return nil
}

// Snapshot returns a copy of the current dashboard state
func (s *DashboardService) Snapshot() models.DashboardSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Positions = make([]models.BrokerPosition, len(s.snapshot.Positions))
	copy(snap.Positions, s.snapshot.Positions)
	return snap
}

// Record implements ActivityLog: one line per notable trading event
func (s *DashboardService) Record(symbol, action, details string) {
	entry := models.ActivityEntry{
		Timestamp: time.Now(),
		Symbol:    symbol,
		Action:    action,
		Details:   details,
	}

	s.mu.Lock()
	s.activity = append([]models.ActivityEntry{entry}, s.activity...)
	if len(s.activity) > memoryActivity {
		s.activity = s.activity[:memoryActivity]
	}
	s.mu.Unlock()

	if s.redis != nil {
		data, err := json.Marshal(entry)
		if err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		pipe := s.redis.Pipeline()
		pipe.LPush(ctx, activityKey, data)
		pipe.LTrim(ctx, activityKey, 0, redisActivity-1)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("[dashboard] activity log write failed: %v", err)
		}
	}
}

// Activity returns the newest entries, newest first
func (s *DashboardService) Activity(limit int) []models.ActivityEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.activity) {
		limit = len(s.activity)
	}
	out := make([]models.ActivityEntry, limit)
	copy(out, s.activity[:limit])
	return out
}

func (s *DashboardService) setStatus(status string) {
	s.mu.Lock()
	s.snapshot.Status = status
	s.mu.Unlock()
}

func (s *DashboardService) loadActivity() {
	if s.redis == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	items, err := s.redis.LRange(ctx, activityKey, 0, memoryActivity-1).Result()
	if err != nil {
		log.Printf("[dashboard] activity log load failed: %v", err)
		return
	}
	for _, item := range items {
		var entry models.ActivityEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		s.activity = append(s.activity, entry)
	}
}
