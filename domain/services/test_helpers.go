package services

import (
	"context"
	"testing"
	"time"

	"mxiledger/domain/entities"
	"mxiledger/domain/events"
	"mxiledger/domain/interfaces"
	"mxiledger/domain/testhelpers"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// Test constants for consistent test data
const (
	TestUser1ID  = "user-1"
	TestUser2ID  = "user-2"
	TestUser3ID  = "user-3"
	TestUser4ID  = "user-4"
	TestWagerID  = int64(1)
	TestGameType = "quiz"
)

// TestNow is the instant every fake clock in this package starts at
var TestNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// TestMocks aggregates all repository mocks for testing
type TestMocks struct {
	AccountRepo      *testhelpers.MockAccountRepository
	UserRepo         *testhelpers.MockUserRepository
	ReferralRepo     *testhelpers.MockReferralRepository
	WagerRepo        *testhelpers.MockWagerRepository
	GameSettingsRepo *testhelpers.MockGameSettingsRepository
	LedgerRepo       *testhelpers.MockLedgerEntryRepository
	EventPublisher   *testhelpers.MockEventPublisher
	Clock            *clockwork.FakeClock
}

// NewTestMocks creates a new set of mocks
func NewTestMocks() *TestMocks {
	return &TestMocks{
		AccountRepo:      &testhelpers.MockAccountRepository{},
		UserRepo:         &testhelpers.MockUserRepository{},
		ReferralRepo:     &testhelpers.MockReferralRepository{},
		WagerRepo:        &testhelpers.MockWagerRepository{},
		GameSettingsRepo: &testhelpers.MockGameSettingsRepository{},
		LedgerRepo:       &testhelpers.MockLedgerEntryRepository{},
		EventPublisher:   &testhelpers.MockEventPublisher{},
		Clock:            clockwork.NewFakeClockAt(TestNow),
	}
}

// AssertAllExpectations verifies all mock expectations were met
func (m *TestMocks) AssertAllExpectations(t *testing.T) {
	m.AccountRepo.AssertExpectations(t)
	m.UserRepo.AssertExpectations(t)
	m.ReferralRepo.AssertExpectations(t)
	m.WagerRepo.AssertExpectations(t)
	m.GameSettingsRepo.AssertExpectations(t)
	m.LedgerRepo.AssertExpectations(t)
	m.EventPublisher.AssertExpectations(t)
}

// Ledger builds a ledger service over the mocks
func (m *TestMocks) Ledger() interfaces.LedgerService {
	return NewLedgerService(m.AccountRepo, m.ReferralRepo, m.LedgerRepo, m.EventPublisher, m.Clock)
}

// MockHelper provides common mock setup patterns
type MockHelper struct {
	mocks *TestMocks
	ctx   context.Context
}

// NewMockHelper creates a new mock helper
func NewMockHelper(mocks *TestMocks) *MockHelper {
	return &MockHelper{
		mocks: mocks,
		ctx:   context.Background(),
	}
}

// ExpectAccountLock returns account from the locking read
func (h *MockHelper) ExpectAccountLock(userID string, account *entities.Account) {
	h.mocks.AccountRepo.On("GetByUserIDForUpdate", mock.Anything, userID).Return(account, nil)
}

// ExpectAccountNotFound makes the locking read miss
func (h *MockHelper) ExpectAccountNotFound(userID string) {
	h.mocks.AccountRepo.On("GetByUserIDForUpdate", mock.Anything, userID).Return(nil, nil)
}

// ExpectAccountUpdate accepts any persisted version of the user's account
func (h *MockHelper) ExpectAccountUpdate(userID string) {
	h.mocks.AccountRepo.On("Update", mock.Anything, mock.MatchedBy(func(a *entities.Account) bool {
		return a.UserID == userID
	})).Return(nil)
}

// ExpectLedgerRecord expects one journal entry for the user and transaction type
func (h *MockHelper) ExpectLedgerRecord(userID string, txType entities.TransactionType) {
	h.mocks.LedgerRepo.On("Record", mock.Anything, mock.MatchedBy(func(e *entities.LedgerEntry) bool {
		return e.UserID == userID && e.TransactionType == txType
	})).Return(nil)
}

// ExpectLedgerChange sets up the full lock, update and journal path of one mutation
func (h *MockHelper) ExpectLedgerChange(account *entities.Account, txType entities.TransactionType) {
	h.ExpectAccountLock(account.UserID, account)
	h.ExpectAccountUpdate(account.UserID)
	h.ExpectLedgerRecord(account.UserID, txType)
}

// ExpectEventPublish sets up event publisher mock expectations
func (h *MockHelper) ExpectEventPublish(eventType events.EventType) {
	h.mocks.EventPublisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		return e.Type() == eventType
	})).Return(nil)
}

// ExpectReferrer makes referrerID the level-1 referrer of referredID
func (h *MockHelper) ExpectReferrer(referredID, referrerID string) {
	h.mocks.ReferralRepo.On("GetReferrer", mock.Anything, referredID).Return(&entities.ReferralEdge{
		ReferrerID: referrerID,
		ReferredID: referredID,
		Level:      1,
	}, nil)
}

// ExpectNoReferrer ends a referral walk at userID
func (h *MockHelper) ExpectNoReferrer(userID string) {
	h.mocks.ReferralRepo.On("GetReferrer", mock.Anything, userID).Return(nil, nil)
}

// ExpectGraphLock lets a referral graph change take its lock
func (h *MockHelper) ExpectGraphLock() {
	h.mocks.ReferralRepo.On("LockGraph", mock.Anything).Return(nil).Once()
}

// ExpectUserLookup sets up user repository mock expectations
func (h *MockHelper) ExpectUserLookup(user *entities.User) {
	h.mocks.UserRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)
}

// ExpectWagerLock returns wager and its participants from the locking reads
func (h *MockHelper) ExpectWagerLock(wager *entities.Wager, participants ...*entities.WagerParticipant) {
	h.mocks.WagerRepo.On("GetByIDForUpdate", mock.Anything, wager.ID).Return(wager, nil)
	h.mocks.WagerRepo.On("GetParticipants", mock.Anything, wager.ID).Return(participants, nil).Maybe()
}

// NewTestAccount builds an account with purchased and tournament balances
func NewTestAccount(userID string, purchased, tournament int64) *entities.Account {
	account := entities.NewAccount(userID, entities.DefaultMonthlyVestingRate, TestNow)
	if purchased > 0 {
		_ = account.Credit(entities.BucketPurchased, decimal.NewFromInt(purchased))
	}
	if tournament > 0 {
		_ = account.Credit(entities.BucketTournament, decimal.NewFromInt(tournament))
	}
	return account
}

// NewTestWager builds a waiting mini battle with the given seats taken
func NewTestWager(kind entities.WagerKind, maxPlayers, currentPlayers int, fee int64) *entities.Wager {
	creator := TestUser1ID
	wager := &entities.Wager{
		ID:              TestWagerID,
		Kind:            kind,
		GameType:        TestGameType,
		EntryFee:        decimal.NewFromInt(fee),
		MaxPlayers:      maxPlayers,
		CurrentPlayers:  currentPlayers,
		PrizePool:       decimal.NewFromInt(fee * int64(maxPlayers)),
		RetainedAmount:  decimal.Zero,
		Status:          entities.WagerStatusWaiting,
		AllowRandomJoin: kind != entities.WagerKindChallenge,
		CreatedAt:       TestNow,
		UpdatedAt:       TestNow,
	}
	if kind.CreatorFunded() {
		wager.CreatorID = &creator
	}
	return wager
}

// NewTestParticipant builds a participant who paid the wager's fee from tournament
func NewTestParticipant(wager *entities.Wager, id int64, userID string, joinedAt time.Time, score *int64) *entities.WagerParticipant {
	return &entities.WagerParticipant{
		ID:            id,
		WagerID:       wager.ID,
		UserID:        userID,
		BalanceSource: entities.BalanceSourceTournament,
		EntryFeePaid:  wager.EntryFee,
		Score:         score,
		Prize:         decimal.Zero,
		JoinedAt:      joinedAt,
	}
}

// Score returns a pointer for participant scores in tables
func Score(v int64) *int64 {
	return &v
}

// DecimalEq matches a decimal argument by value rather than representation
func DecimalEq(v string) interface{} {
	want := decimal.RequireFromString(v)
	return mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(want)
	})
}
