package sharedprompt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prompt-studio/backend/internal/infra/metrics"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	defaultReconcileInterval = 10 * time.Minute
	defaultReconcileBatch    = 200
	defaultReconcileLockKey  = "community:reconcile:lock"
)

var errReconcileLockLost = errors.New("reconcile lock lost")

// ReconcileConfig 描述聚合字段校准任务的配置。
type ReconcileConfig struct {
	Enabled  bool
	Interval time.Duration
	Batch    int
	LockKey  string
	LockTTL  time.Duration
}

// normaliseReconcileConfig 为校准配置补全默认值。
func normaliseReconcileConfig(cfg ReconcileConfig) ReconcileConfig {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultReconcileInterval
	}
	if cfg.Batch <= 0 {
		cfg.Batch = defaultReconcileBatch
	}
	if cfg.LockKey == "" {
		cfg.LockKey = defaultReconcileLockKey
	}
	// 单次运行最长持续一个 Interval，锁的有效期不能短于它。
	if cfg.LockTTL < cfg.Interval {
		cfg.LockTTL = cfg.Interval
	}
	return cfg
}

// ReconcileAll 按主键游标分批，从明细行重算所有 Prompt 的聚合字段。
// 多实例部署时通过 Redis 锁保证同一时刻只有一个实例在跑。
func (s *Service) ReconcileAll(ctx context.Context) error {
	if !s.acquireReconcileLock(ctx) {
		metrics.RecordReconcile("skipped")
		return nil
	}
	defer s.releaseReconcileLock(context.WithoutCancel(ctx))

	var (
		afterID   uint
		processed int
	)
	for {
		select {
		case <-ctx.Done():
			metrics.RecordReconcile("canceled")
			return ctx.Err()
		default:
		}
		ids, err := s.prompts.ListIDsAfter(ctx, afterID, s.reconcileCfg.Batch)
		if err != nil {
			metrics.RecordReconcile("error")
			return err
		}
		for _, id := range ids {
			if err := s.prompts.RecomputeAggregates(ctx, id); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				metrics.RecordReconcile("error")
				return err
			}
		}
		processed += len(ids)
		if len(ids) < s.reconcileCfg.Batch {
			break
		}
		afterID = ids[len(ids)-1]
		if err := s.extendReconcileLock(ctx); err != nil {
			metrics.RecordReconcile("error")
			return err
		}
	}
	metrics.RecordReconcile("success")
	s.logger.Infow("shared prompt aggregates reconciled", "processed", processed)
	return nil
}

// StartReconcileWorker 周期性执行 ReconcileAll，ctx 取消后返回。调用方负责在独立 goroutine 中运行。
func (s *Service) StartReconcileWorker(ctx context.Context) error {
	if !s.reconcileCfg.Enabled {
		s.logger.Infow("reconcile worker disabled")
		return nil
	}
	interval := s.reconcileCfg.Interval
	return runPeriodic(ctx, interval, func(ctx context.Context) {
		workCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		if err := s.ReconcileAll(workCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warnw("reconcile shared prompt aggregates failed", "error", err)
		}
	})
}

// runPeriodic 每隔 interval 调用一次 fn，直到 ctx 结束。
func runPeriodic(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// acquireReconcileLock 未配置 Redis 时视为单实例，直接放行。
func (s *Service) acquireReconcileLock(ctx context.Context) bool {
	if s.redis == nil {
		return true
	}
	ok, err := s.redis.SetNX(ctx, s.reconcileCfg.LockKey, s.lockValue, s.reconcileCfg.LockTTL).Result()
	if err != nil {
		s.logger.Warnw("acquire reconcile lock failed", "error", err)
		return false
	}
	return ok
}

// extendReconcileLock 在每批结束后为自己持有的锁续期，锁已易主时返回 errReconcileLockLost。
func (s *Service) extendReconcileLock(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	const script = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	end
	return 0
	`
	res, err := s.redis.Eval(ctx, script, []string{s.reconcileCfg.LockKey}, s.lockValue, s.reconcileCfg.LockTTL.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend reconcile lock: %w", err)
	}
	if res == 0 {
		return errReconcileLockLost
	}
	return nil
}

// releaseReconcileLock 只删除自己持有的锁。
func (s *Service) releaseReconcileLock(ctx context.Context) {
	if s.redis == nil {
		return
	}
	const script = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
	`
	if _, err := s.redis.Eval(ctx, script, []string{s.reconcileCfg.LockKey}, s.lockValue).Result(); err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warnw("release reconcile lock failed", "error", err)
	}
}
