package services

import (
	"context"
	"fmt"

	"mxiledger/domain/entities"
	"mxiledger/domain/interfaces"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// maxChainWalk bounds the upward walk used for cycle detection
const maxChainWalk = 10000

type referralService struct {
	userRepo     interfaces.UserRepository
	referralRepo interfaces.ReferralRepository
	clock        clockwork.Clock
}

// NewReferralService creates a new referral service
func NewReferralService(
	userRepo interfaces.UserRepository,
	referralRepo interfaces.ReferralRepository,
	clock clockwork.Clock,
) interfaces.ReferralService {
	return &referralService{
		userRepo:     userRepo,
		referralRepo: referralRepo,
		clock:        clock,
	}
}

// Link makes referrerID the direct referrer of referredID. It also adds the
// level 2 and 3 edges implied by the new link, both above referredID and
// for anyone referredID already referred.
func (s *referralService) Link(ctx context.Context, referredID, referrerID string) ([]*entities.ReferralEdge, error) {
	if referredID == referrerID {
		return nil, fmt.Errorf("%w: user cannot refer themselves", entities.ErrReferralCycle)
	}

	if err := s.referralRepo.LockGraph(ctx); err != nil {
		return nil, err
	}

	for _, id := range []string{referredID, referrerID} {
		user, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		if user == nil {
			return nil, fmt.Errorf("%w: user %s", entities.ErrNotFound, id)
		}
	}

	existing, err := s.referralRepo.GetReferrer(ctx, referredID)
	if err != nil {
		return nil, fmt.Errorf("failed to get referrer: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s is referred by %s", entities.ErrReferralExists, referredID, existing.ReferrerID)
	}

	// Full upward chain of the referrer. Meeting referredID means the link
	// would close a loop.
	chain, err := s.chainAbove(ctx, referrerID)
	if err != nil {
		return nil, err
	}
	for _, ancestor := range chain {
		if ancestor == referredID {
			return nil, fmt.Errorf("%w: %s is an ancestor of %s", entities.ErrReferralCycle, referredID, referrerID)
		}
	}

	// uplines[0] is the referrer, uplines[1] its referrer and so on
	uplines := append([]string{referrerID}, chain...)
	if len(uplines) > entities.MaxReferralLevel {
		uplines = uplines[:entities.MaxReferralLevel]
	}

	now := s.clock.Now()
	var created []*entities.ReferralEdge
	add := func(ancestor, descendant string, level int) error {
		edge := &entities.ReferralEdge{
			ReferrerID:            ancestor,
			ReferredID:            descendant,
			Level:                 level,
			CommissionAccumulated: decimal.Zero,
			CreatedAt:             now,
		}
		if err := s.referralRepo.Create(ctx, edge); err != nil {
			return fmt.Errorf("failed to create level %d edge: %w", level, err)
		}
		created = append(created, edge)
		return nil
	}

	for i, ancestor := range uplines {
		if err := add(ancestor, referredID, i+1); err != nil {
			return nil, err
		}
	}

	downlines, err := s.referralRepo.ListByReferrer(ctx, referredID)
	if err != nil {
		return nil, fmt.Errorf("failed to list downlines: %w", err)
	}
	for _, down := range downlines {
		for i, ancestor := range uplines {
			level := down.Level + i + 1
			if level > entities.MaxReferralLevel {
				break
			}
			if err := add(ancestor, down.ReferredID, level); err != nil {
				return nil, err
			}
		}
	}

	if err := s.userRepo.SetReferredBy(ctx, referredID, referrerID); err != nil {
		return nil, fmt.Errorf("failed to set referrer: %w", err)
	}

	log.WithFields(log.Fields{
		"referredID": referredID,
		"referrerID": referrerID,
		"edges":      len(created),
	}).Info("Linked referral")

	return created, nil
}

// chainAbove returns every ancestor of userID following level-1 edges
func (s *referralService) chainAbove(ctx context.Context, userID string) ([]string, error) {
	visited := map[string]bool{userID: true}
	var chain []string

	current := userID
	for len(chain) < maxChainWalk {
		edge, err := s.referralRepo.GetReferrer(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("failed to get referrer of %s: %w", current, err)
		}
		if edge == nil {
			return chain, nil
		}
		if visited[edge.ReferrerID] {
			return nil, fmt.Errorf("%w: loop above %s", entities.ErrCorruptReferralGraph, userID)
		}
		visited[edge.ReferrerID] = true
		chain = append(chain, edge.ReferrerID)
		current = edge.ReferrerID
	}
	return nil, fmt.Errorf("%w: chain above %s exceeds %d links", entities.ErrCorruptReferralGraph, userID, maxChainWalk)
}
