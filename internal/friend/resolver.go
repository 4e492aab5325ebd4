package friend

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"lonelycare/internal/models"
	"lonelycare/pkg/errors"
)

type Direction int

const (
	// 监护人发起的关系
	Outgoing Direction = iota
	// 监护人是被添加方
	Incoming
)

func (d Direction) String() string {
	if d == Incoming {
		return "incoming"
	}
	return "outgoing"
}

// Store GetIdentity 对不存在的用户返回 (nil, nil)；心跳不保证顺序
type Store interface {
	GetRelationships(ctx context.Context, ownerID string, dir Direction) ([]models.Friendship, error)
	GetIdentity(ctx context.Context, userID string) (*models.User, error)
	ListHeartbeats(ctx context.Context, userID string) ([]models.Heartbeat, error)
}

type Contact struct {
	ID           string
	DisplayName  string
	Phone        string
	Email        string
	Relationship models.Friendship
	Direction    Direction
	LastActivity *time.Time
	// 身份或心跳查询失败，级别未知
	Degraded bool
	Err      error
}

type Resolver struct {
	store  Store
	logger *zap.Logger
}

func NewResolver(store Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve 按 ID 排序返回；两个方向都读不到时才报错
func (r *Resolver) Resolve(ctx context.Context, ownerID string) ([]Contact, error) {
	links, err := r.links(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(links))
	for id := range links {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	contacts := make([]Contact, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return contacts, err
		}
		c, ok := r.resolveContact(ctx, id, links[id])
		if ok {
			contacts = append(contacts, c)
		}
	}
	return contacts, nil
}

type link struct {
	rel models.Friendship
	dir Direction
}

// 按对方去重，发起方记录优先
func (r *Resolver) links(ctx context.Context, ownerID string) (map[string]link, error) {
	out := make(map[string]link)
	var failed int
	var lastErr error

	for _, dir := range []Direction{Outgoing, Incoming} {
		rels, err := r.store.GetRelationships(ctx, ownerID, dir)
		if err != nil {
			failed++
			lastErr = err
			r.logger.Warn("Failed to load relationships",
				zap.String("owner_id", ownerID),
				zap.Stringer("direction", dir),
				zap.Error(err),
			)
			continue
		}
		for _, rel := range rels {
			if rel.Status != models.FriendshipAccepted {
				continue
			}
			other := rel.FriendID
			if dir == Incoming {
				other = rel.UserID
			}
			if other == "" || other == ownerID {
				continue
			}
			if existing, ok := out[other]; ok && existing.dir == Outgoing {
				continue
			}
			out[other] = link{rel: rel, dir: dir}
		}
	}

	if failed == 2 {
		return nil, errors.WrapCode(lastErr, errors.CodeStoreUnavailable, "load relationships")
	}
	return out, nil
}

func (r *Resolver) resolveContact(ctx context.Context, id string, l link) (Contact, bool) {
	c := Contact{ID: id, Relationship: l.rel, Direction: l.dir}

	user, err := r.store.GetIdentity(ctx, id)
	switch {
	case err != nil:
		r.logger.Warn("Identity lookup failed, contact degraded", zap.String("contact_id", id), zap.Error(err))
		c.Degraded = true
		c.Err = err
	case user == nil:
		r.logger.Debug("Unknown contact skipped", zap.String("contact_id", id))
		return Contact{}, false
	default:
		c.DisplayName = user.DisplayName
		c.Phone = user.Phone
		c.Email = user.Email
	}

	beats, err := r.store.ListHeartbeats(ctx, id)
	if err != nil {
		r.logger.Warn("Heartbeat lookup failed, contact degraded", zap.String("contact_id", id), zap.Error(err))
		c.Degraded = true
		if c.Err == nil {
			c.Err = err
		}
		return c, true
	}
	c.LastActivity = latest(beats)
	return c, true
}

// 在内存里排序，存储层不需要复合索引
func latest(beats []models.Heartbeat) *time.Time {
	if len(beats) == 0 {
		return nil
	}
	sorted := make([]models.Heartbeat, len(beats))
	copy(sorted, beats)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.After(sorted[j].Timestamp) })
	ts := sorted[0].Timestamp
	return &ts
}
