package comment

import (
	"context"
	"fmt"
	"time"

	"github.com/mx-space/mdx-core/internal/pkg/redis"
)

// VoteGuard decides whether a client may vote on a comment.
type VoteGuard interface {
	FirstVote(ctx context.Context, id int64, client string) (bool, error)
}

const defaultVoteWindow = 24 * time.Hour

type redisVoteGuard struct {
	rdb    *redis.Client
	window time.Duration
}

// NewRedisVoteGuard allows one vote per comment and client within window.
func NewRedisVoteGuard(rdb *redis.Client, window time.Duration) VoteGuard {
	if window <= 0 {
		window = defaultVoteWindow
	}
	return &redisVoteGuard{rdb: rdb, window: window}
}

func (g *redisVoteGuard) FirstVote(ctx context.Context, id int64, client string) (bool, error) {
	if client == "" {
		return true, nil
	}
	return g.rdb.SetOnce(ctx, fmt.Sprintf("mdx:comment_vote:%d:%s", id, client), g.window)
}
