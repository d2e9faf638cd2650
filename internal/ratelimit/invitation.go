package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/identity/internal/config"
)

const keyInvitationAccept = "identity:ratelimit:invitation_accept:%s"

// InvitationLimiter throttles token based invitation acceptance per caller.
// A nil limiter allows everything.
type InvitationLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewInvitationLimiter(cfg config.Config, client *redis.Client) (*InvitationLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("rate limit requires redis")
	}
	if limitCfg.InvitationAcceptRate <= 0 || limitCfg.InvitationAcceptBurst <= 0 {
		return nil, errors.New("invitation accept rate limit must be positive")
	}
	return &InvitationLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.InvitationAcceptRate,
		burst:  limitCfg.InvitationAcceptBurst,
	}, nil
}

func (l *InvitationLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *InvitationLimiter) AllowAccept(ctx context.Context, caller string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyInvitationAccept, strings.TrimSpace(caller)), l.rate, l.burst)
}
