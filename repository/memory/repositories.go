package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"mxiledger/domain/entities"

	"github.com/shopspring/decimal"
)

type accountRepository struct {
	s   *state
	now func() time.Time
}

func (r *accountRepository) Create(_ context.Context, account *entities.Account) error {
	if _, ok := r.s.users[account.UserID]; !ok {
		return fmt.Errorf("%w: user %s", entities.ErrNotFound, account.UserID)
	}
	if _, ok := r.s.accounts[account.UserID]; ok {
		return fmt.Errorf("%w: account for %s", entities.ErrUserExists, account.UserID)
	}
	a := *account
	r.s.accounts[account.UserID] = &a
	return nil
}

func (r *accountRepository) GetByUserID(_ context.Context, userID string) (*entities.Account, error) {
	a, ok := r.s.accounts[userID]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

// GetByUserIDForUpdate is a plain read; the store lock already serializes writers
func (r *accountRepository) GetByUserIDForUpdate(ctx context.Context, userID string) (*entities.Account, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *accountRepository) LockForUpdate(context.Context, []string) error {
	return nil
}

func (r *accountRepository) Update(_ context.Context, account *entities.Account) error {
	if _, ok := r.s.accounts[account.UserID]; !ok {
		return fmt.Errorf("%w: account for user %s", entities.ErrNotFound, account.UserID)
	}
	if err := account.Validate(); err != nil {
		return fmt.Errorf("failed to update account for user %s: %w", account.UserID, err)
	}
	a := *account
	r.s.accounts[account.UserID] = &a
	return nil
}

func (r *accountRepository) ListUserIDsWithPurchased(context.Context) ([]string, error) {
	var ids []string
	for id, a := range r.s.accounts {
		if a.Purchased.IsPositive() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *accountRepository) ResetAllVesting(_ context.Context, now time.Time) (int, decimal.Decimal, error) {
	total := decimal.Zero
	for id, a := range r.s.accounts {
		reset := *a
		total = total.Add(reset.VestingAccrued)
		reset.VestingAccrued = decimal.Zero
		reset.LastAccrualAt = now
		reset.UpdatedAt = now
		r.s.accounts[id] = &reset
	}
	return len(r.s.accounts), total, nil
}

type userRepository struct {
	s *state
}

func (r *userRepository) Create(_ context.Context, user *entities.User) error {
	if _, ok := r.s.users[user.ID]; ok {
		return fmt.Errorf("%w: id %s is taken", entities.ErrUserExists, user.ID)
	}
	for _, u := range r.s.users {
		if u.Email == user.Email || u.ReferralCode == user.ReferralCode {
			return fmt.Errorf("%w: email %s or referral code %s is taken", entities.ErrUserExists, user.Email, user.ReferralCode)
		}
	}
	u := *user
	r.s.users[user.ID] = &u
	return nil
}

func (r *userRepository) find(match func(*entities.User) bool) *entities.User {
	for _, u := range r.s.users {
		if match(u) {
			copied := *u
			return &copied
		}
	}
	return nil
}

func (r *userRepository) GetByID(_ context.Context, id string) (*entities.User, error) {
	if u, ok := r.s.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*entities.User, error) {
	email = entities.NormalizeEmail(email)
	return r.find(func(u *entities.User) bool { return u.Email == email }), nil
}

func (r *userRepository) GetByReferralCode(_ context.Context, code string) (*entities.User, error) {
	code = entities.NormalizeCode(code)
	return r.find(func(u *entities.User) bool { return u.ReferralCode == code }), nil
}

func (r *userRepository) ReferralCodeExists(_ context.Context, code string) (bool, error) {
	return r.find(func(u *entities.User) bool { return u.ReferralCode == code }) != nil, nil
}

func (r *userRepository) SetReferredBy(_ context.Context, userID, referrerID string) error {
	u, ok := r.s.users[userID]
	if !ok || u.ReferredBy != nil {
		return fmt.Errorf("%w: user %s", entities.ErrReferralExists, userID)
	}
	updated := *u
	updated.ReferredBy = &referrerID
	r.s.users[userID] = &updated
	return nil
}

type referralRepository struct {
	s   *state
	now func() time.Time
}

func (r *referralRepository) levelTaken(referredID string, level int, except edgeKey) bool {
	for k, e := range r.s.edges {
		if k != except && e.ReferredID == referredID && e.Level == level {
			return true
		}
	}
	return false
}

// LockGraph is a no-op: a transaction already holds the whole store
func (r *referralRepository) LockGraph(context.Context) error { return nil }

func (r *referralRepository) Create(_ context.Context, edge *entities.ReferralEdge) error {
	key := edgeKey{edge.ReferrerID, edge.ReferredID}
	if _, ok := r.s.edges[key]; ok {
		return nil
	}
	if r.levelTaken(edge.ReferredID, edge.Level, key) {
		return fmt.Errorf("%w: %s already has a level %d ancestor", entities.ErrCorruptReferralGraph, edge.ReferredID, edge.Level)
	}
	e := *edge
	r.s.edges[key] = &e
	return nil
}

func (r *referralRepository) GetReferrer(_ context.Context, referredID string) (*entities.ReferralEdge, error) {
	for _, e := range r.s.edges {
		if e.ReferredID == referredID && e.Level == 1 {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *referralRepository) ListByReferrer(_ context.Context, referrerID string) ([]*entities.ReferralEdge, error) {
	var out []*entities.ReferralEdge
	for _, e := range r.s.edges {
		if e.ReferrerID == referrerID {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ReferredID < out[j].ReferredID
	})
	return out, nil
}

func (r *referralRepository) AddCommission(_ context.Context, referrerID, referredID string, level int, amount decimal.Decimal) error {
	key := edgeKey{referrerID, referredID}
	if e, ok := r.s.edges[key]; ok {
		updated := *e
		updated.CommissionAccumulated = updated.CommissionAccumulated.Add(amount)
		r.s.edges[key] = &updated
		return nil
	}
	if r.levelTaken(referredID, level, key) {
		return fmt.Errorf("%w: conflicting level %d edge for %s", entities.ErrCorruptReferralGraph, level, referredID)
	}
	r.s.edges[key] = &entities.ReferralEdge{
		ReferrerID:            referrerID,
		ReferredID:            referredID,
		Level:                 level,
		CommissionAccumulated: amount,
		CreatedAt:             r.now(),
	}
	return nil
}

type wagerRepository struct {
	s *state
}

func (r *wagerRepository) Create(_ context.Context, wager *entities.Wager) error {
	if wager.InviteCode != nil {
		if exists, _ := r.InviteCodeExists(context.Background(), *wager.InviteCode); exists {
			return fmt.Errorf("%w: invite code %s is taken", entities.ErrInvalidWager, *wager.InviteCode)
		}
	}
	r.s.nextWagerID++
	wager.ID = r.s.nextWagerID
	w := *wager
	r.s.wagers[w.ID] = &w
	return nil
}

func (r *wagerRepository) GetByID(_ context.Context, id int64) (*entities.Wager, error) {
	if w, ok := r.s.wagers[id]; ok {
		copied := *w
		return &copied, nil
	}
	return nil, nil
}

func (r *wagerRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Wager, error) {
	return r.GetByID(ctx, id)
}

func (r *wagerRepository) GetByInviteCodeForUpdate(_ context.Context, code string) (*entities.Wager, error) {
	code = entities.NormalizeCode(code)
	for _, w := range r.s.wagers {
		if w.InviteCode != nil && *w.InviteCode == code {
			copied := *w
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *wagerRepository) Update(_ context.Context, wager *entities.Wager) error {
	if _, ok := r.s.wagers[wager.ID]; !ok {
		return fmt.Errorf("%w: wager %d", entities.ErrNotFound, wager.ID)
	}
	if wager.CurrentPlayers < 0 || wager.CurrentPlayers > wager.MaxPlayers {
		return fmt.Errorf("wager %d: current players %d outside 0..%d", wager.ID, wager.CurrentPlayers, wager.MaxPlayers)
	}
	w := *wager
	r.s.wagers[wager.ID] = &w
	return nil
}

func (r *wagerRepository) AddParticipant(_ context.Context, p *entities.WagerParticipant) error {
	if _, ok := r.s.wagers[p.WagerID]; !ok {
		return fmt.Errorf("%w: wager %d", entities.ErrNotFound, p.WagerID)
	}
	for _, existing := range r.s.participants[p.WagerID] {
		if existing.UserID == p.UserID {
			return fmt.Errorf("%w: user %s in wager %d", entities.ErrAlreadyJoined, p.UserID, p.WagerID)
		}
	}
	r.s.nextParticipantID++
	p.ID = r.s.nextParticipantID
	copied := *p
	r.s.participants[p.WagerID] = append(r.s.participants[p.WagerID], &copied)
	return nil
}

func (r *wagerRepository) UpdateParticipant(_ context.Context, p *entities.WagerParticipant) error {
	list := r.s.participants[p.WagerID]
	for i, existing := range list {
		if existing.ID == p.ID {
			copied := *p
			list[i] = &copied
			return nil
		}
	}
	return fmt.Errorf("%w: participant %d", entities.ErrNotFound, p.ID)
}

func (r *wagerRepository) GetParticipants(_ context.Context, wagerID int64) ([]*entities.WagerParticipant, error) {
	list := r.s.participants[wagerID]
	out := make([]*entities.WagerParticipant, 0, len(list))
	for _, p := range list {
		copied := *p
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *wagerRepository) filter(match func(*entities.Wager) bool, less func(a, b *entities.Wager) bool) []*entities.Wager {
	var out []*entities.Wager
	for _, w := range r.s.wagers {
		if match(w) {
			copied := *w
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (r *wagerRepository) CountActiveByGameType(_ context.Context, gameType string) (int, error) {
	count := 0
	for _, w := range r.s.wagers {
		if w.GameType == gameType && w.IsActive() {
			count++
		}
	}
	return count, nil
}

func (r *wagerRepository) ListActiveByGameType(_ context.Context, gameType string) ([]*entities.Wager, error) {
	return r.filter(
		func(w *entities.Wager) bool { return w.GameType == gameType && w.IsActive() },
		func(a, b *entities.Wager) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		},
	), nil
}

func (r *wagerRepository) InviteCodeExists(_ context.Context, code string) (bool, error) {
	for _, w := range r.s.wagers {
		if w.InviteCode != nil && *w.InviteCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *wagerRepository) ListStaleWaiting(_ context.Context, inactiveSince time.Time) ([]*entities.Wager, error) {
	return r.filter(
		func(w *entities.Wager) bool {
			return w.Status == entities.WagerStatusWaiting && w.UpdatedAt.Before(inactiveSince)
		},
		func(a, b *entities.Wager) bool { return a.ID < b.ID },
	), nil
}

func (r *wagerRepository) ListInProgressStartedBefore(_ context.Context, before time.Time) ([]*entities.Wager, error) {
	return r.filter(
		func(w *entities.Wager) bool {
			return w.Status == entities.WagerStatusInProgress && w.StartedAt != nil && w.StartedAt.Before(before)
		},
		func(a, b *entities.Wager) bool { return a.ID < b.ID },
	), nil
}

type gameSettingsRepository struct {
	s   *state
	now func() time.Time
}

func (r *gameSettingsRepository) GetForUpdate(_ context.Context, gameType string, defaultCap int) (*entities.GameSettings, error) {
	gs, ok := r.s.settings[gameType]
	if !ok {
		gs = &entities.GameSettings{GameType: gameType, MaxActiveTournaments: defaultCap, UpdatedAt: r.now()}
		r.s.settings[gameType] = gs
	}
	copied := *gs
	return &copied, nil
}

func (r *gameSettingsRepository) Get(_ context.Context, gameType string) (*entities.GameSettings, error) {
	if gs, ok := r.s.settings[gameType]; ok {
		copied := *gs
		return &copied, nil
	}
	return nil, nil
}

func (r *gameSettingsRepository) Upsert(_ context.Context, settings *entities.GameSettings) error {
	copied := *settings
	r.s.settings[settings.GameType] = &copied
	return nil
}

func (r *gameSettingsRepository) List(context.Context) ([]*entities.GameSettings, error) {
	out := make([]*entities.GameSettings, 0, len(r.s.settings))
	for _, gs := range r.s.settings {
		copied := *gs
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameType < out[j].GameType })
	return out, nil
}

type ledgerEntryRepository struct {
	s   *state
	now func() time.Time
}

func (r *ledgerEntryRepository) Record(_ context.Context, entry *entities.LedgerEntry) error {
	r.s.nextLedgerID++
	entry.ID = r.s.nextLedgerID
	entry.CreatedAt = r.now()
	copied := *entry
	r.s.ledger = append(r.s.ledger, &copied)
	return nil
}

func (r *ledgerEntryRepository) GetByUser(_ context.Context, userID string, limit int) ([]*entities.LedgerEntry, error) {
	var out []*entities.LedgerEntry
	for i := len(r.s.ledger) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if e := r.s.ledger[i]; e.UserID == userID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

type auditRepository struct {
	s   *state
	now func() time.Time
}

func (r *auditRepository) Record(_ context.Context, record *entities.AuditRecord) error {
	r.s.nextAuditID++
	record.ID = r.s.nextAuditID
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now()
	}
	copied := *record
	r.s.audits = append(r.s.audits, &copied)
	return nil
}

func (r *auditRepository) List(_ context.Context, limit int) ([]*entities.AuditRecord, error) {
	var out []*entities.AuditRecord
	for i := len(r.s.audits) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		copied := *r.s.audits[i]
		out = append(out, &copied)
	}
	return out, nil
}

type purchaseRepository struct {
	s *state
}

func (r *purchaseRepository) Create(_ context.Context, purchase *entities.Purchase) (bool, error) {
	if _, ok := r.s.purchases[purchase.OrderID]; ok {
		return false, nil
	}
	copied := *purchase
	r.s.purchases[purchase.OrderID] = &copied
	return true, nil
}

func (r *purchaseRepository) GetByOrderID(_ context.Context, orderID string) (*entities.Purchase, error) {
	if p, ok := r.s.purchases[orderID]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, nil
}
