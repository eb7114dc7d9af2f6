package services

import (
	"context"
	"testing"

	"mxiledger/domain/entities"
	"mxiledger/domain/events"
	"mxiledger/domain/interfaces"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func (m *TestMocks) Wagers() interfaces.WagerService {
	return NewWagerService(m.WagerRepo, m.GameSettingsRepo, m.AccountRepo, m.Ledger(), m.EventPublisher, m.Clock)
}

func strPtr(s string) *string { return &s }

func TestWagerService_CreateValidation(t *testing.T) {
	creator := strPtr(TestUser1ID)

	tests := []struct {
		name          string
		req           interfaces.CreateWagerRequest
		expectedError error
	}{
		{
			name:          "unknown kind",
			req:           interfaces.CreateWagerRequest{Kind: "lottery", GameType: TestGameType, EntryFee: decimal.NewFromInt(5), MaxPlayers: 2},
			expectedError: entities.ErrInvalidWager,
		},
		{
			name:          "missing game type",
			req:           interfaces.CreateWagerRequest{Kind: entities.WagerKindMiniBattle, CreatorID: creator, EntryFee: decimal.NewFromInt(5), MaxPlayers: 2, BalanceSource: entities.BalanceSourceTournament},
			expectedError: entities.ErrInvalidWager,
		},
		{
			name:          "mini battle fee below range",
			req:           interfaces.CreateWagerRequest{Kind: entities.WagerKindMiniBattle, CreatorID: creator, GameType: TestGameType, EntryFee: decimal.NewFromInt(4), MaxPlayers: 2, BalanceSource: entities.BalanceSourceTournament},
			expectedError: entities.ErrInvalidAmount,
		},
		{
			name:          "mini battle fee above range",
			req:           interfaces.CreateWagerRequest{Kind: entities.WagerKindMiniBattle, CreatorID: creator, GameType: TestGameType, EntryFee: decimal.NewFromInt(1001), MaxPlayers: 2, BalanceSource: entities.BalanceSourceTournament},
			expectedError: entities.ErrInvalidAmount,
		},
		{
			name:          "mini battle seat count",
			req:           interfaces.CreateWagerRequest{Kind: entities.WagerKindMiniBattle, CreatorID: creator, GameType: TestGameType, EntryFee: decimal.NewFromInt(10), MaxPlayers: 5, BalanceSource: entities.BalanceSourceTournament},
			expectedError: entities.ErrInvalidWager,
		},
		{
			name:          "challenge needs four seats",
			req:           interfaces.CreateWagerRequest{Kind: entities.WagerKindChallenge, CreatorID: creator, GameType: TestGameType, EntryFee: decimal.NewFromInt(10), MaxPlayers: 2, BalanceSource: entities.BalanceSourceTournament},
			expectedError: entities.ErrInvalidWager,
		},
		{
			name:          "tournament fee is fixed",
			req:           interfaces.CreateWagerRequest{Kind: entities.WagerKindTournament, GameType: TestGameType, EntryFee: decimal.NewFromInt(4), MaxPlayers: 25},
			expectedError: entities.ErrInvalidAmount,
		},
		{
			name:          "tournament seat count",
			req:           interfaces.CreateWagerRequest{Kind: entities.WagerKindTournament, GameType: TestGameType, EntryFee: decimal.NewFromInt(3), MaxPlayers: 30},
			expectedError: entities.ErrInvalidWager,
		},
		{
			name:          "tournament has no creator",
			req:           interfaces.CreateWagerRequest{Kind: entities.WagerKindTournament, CreatorID: creator, GameType: TestGameType, EntryFee: decimal.NewFromInt(3), MaxPlayers: 25},
			expectedError: entities.ErrInvalidWager,
		},
		{
			name:          "creator funded needs a source",
			req:           interfaces.CreateWagerRequest{Kind: entities.WagerKindMiniBattle, CreatorID: creator, GameType: TestGameType, EntryFee: decimal.NewFromInt(10), MaxPlayers: 2, BalanceSource: "purchased"},
			expectedError: entities.ErrInvalidWager,
		},
		{
			name:          "creator funded needs a creator",
			req:           interfaces.CreateWagerRequest{Kind: entities.WagerKindMiniBattle, GameType: TestGameType, EntryFee: decimal.NewFromInt(10), MaxPlayers: 2, BalanceSource: entities.BalanceSourceTournament},
			expectedError: entities.ErrInvalidWager,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mocks := NewTestMocks()

			_, err := mocks.Wagers().Create(context.Background(), tt.req)

			assert.ErrorIs(t, err, tt.expectedError)
			mocks.AssertAllExpectations(t)
		})
	}
}

func TestWagerService_CreateAtCapacity(t *testing.T) {
	mocks := NewTestMocks()
	mocks.GameSettingsRepo.On("GetForUpdate", mock.Anything, TestGameType, 10).
		Return(&entities.GameSettings{GameType: TestGameType, MaxActiveTournaments: 2}, nil)
	mocks.WagerRepo.On("CountActiveByGameType", mock.Anything, TestGameType).Return(2, nil)

	_, err := mocks.Wagers().Create(context.Background(), interfaces.CreateWagerRequest{
		Kind:          entities.WagerKindMiniBattle,
		CreatorID:     strPtr(TestUser1ID),
		GameType:      TestGameType,
		EntryFee:      decimal.NewFromInt(10),
		MaxPlayers:    2,
		BalanceSource: entities.BalanceSourceTournament,
	})

	assert.ErrorIs(t, err, entities.ErrCapacityExceeded)
	mocks.WagerRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	mocks.AssertAllExpectations(t)
}

func TestWagerService_CreateMiniBattle(t *testing.T) {
	mocks := NewTestMocks()
	helper := NewMockHelper(mocks)
	mocks.GameSettingsRepo.On("GetForUpdate", mock.Anything, TestGameType, 10).
		Return(&entities.GameSettings{GameType: TestGameType, MaxActiveTournaments: 10}, nil)
	mocks.WagerRepo.On("CountActiveByGameType", mock.Anything, TestGameType).Return(9, nil)
	mocks.WagerRepo.On("Create", mock.Anything, mock.AnythingOfType("*entities.Wager")).Run(func(args mock.Arguments) {
		args.Get(1).(*entities.Wager).ID = 42
	}).Return(nil)
	helper.ExpectLedgerChange(NewTestAccount(TestUser1ID, 0, 100), entities.TransactionTypeWagerEntry)
	mocks.WagerRepo.On("AddParticipant", mock.Anything, mock.MatchedBy(func(p *entities.WagerParticipant) bool {
		return p.WagerID == 42 && p.UserID == TestUser1ID && p.BalanceSource == entities.BalanceSourceTournament
	})).Return(nil)
	mocks.WagerRepo.On("Update", mock.Anything, mock.MatchedBy(func(w *entities.Wager) bool {
		return w.ID == 42 && w.CurrentPlayers == 1 && w.Status == entities.WagerStatusWaiting
	})).Return(nil)
	helper.ExpectEventPublish(events.EventTypeBalanceChange)
	helper.ExpectEventPublish(events.EventTypeWagerStateChange)

	detail, err := mocks.Wagers().Create(context.Background(), interfaces.CreateWagerRequest{
		Kind:          entities.WagerKindMiniBattle,
		CreatorID:     strPtr(TestUser1ID),
		GameType:      TestGameType,
		EntryFee:      decimal.NewFromInt(25),
		MaxPlayers:    3,
		BalanceSource: entities.BalanceSourceTournament,
	})

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(75).Equal(detail.Wager.PrizePool))
	assert.Nil(t, detail.Wager.InviteCode)
	require.Len(t, detail.Participants, 1)
	mocks.AssertAllExpectations(t)
}

func TestWagerService_JoinRejections(t *testing.T) {
	tests := []struct {
		name          string
		wager         func() *entities.Wager
		participants  []string
		req           interfaces.JoinWagerRequest
		expectedError error
	}{
		{
			name:          "full wager",
			wager:         func() *entities.Wager { return NewTestWager(entities.WagerKindMiniBattle, 2, 2, 10) },
			req:           interfaces.JoinWagerRequest{WagerID: TestWagerID, UserID: TestUser3ID, BalanceSource: entities.BalanceSourceTournament},
			expectedError: entities.ErrWagerFull,
		},
		{
			name: "cancelled wager",
			wager: func() *entities.Wager {
				w := NewTestWager(entities.WagerKindMiniBattle, 3, 1, 10)
				w.Status = entities.WagerStatusCancelled
				return w
			},
			req:           interfaces.JoinWagerRequest{WagerID: TestWagerID, UserID: TestUser3ID, BalanceSource: entities.BalanceSourceTournament},
			expectedError: entities.ErrWagerNotJoinable,
		},
		{
			name:          "kind mismatch reads as not found",
			wager:         func() *entities.Wager { return NewTestWager(entities.WagerKindMiniBattle, 3, 1, 10) },
			req:           interfaces.JoinWagerRequest{WagerID: TestWagerID, Kind: entities.WagerKindTournament, UserID: TestUser3ID, BalanceSource: entities.BalanceSourceTournament},
			expectedError: entities.ErrNotFound,
		},
		{
			name:          "private challenge joined by id",
			wager:         func() *entities.Wager { return NewTestWager(entities.WagerKindChallenge, 4, 1, 10) },
			req:           interfaces.JoinWagerRequest{WagerID: TestWagerID, UserID: TestUser3ID, BalanceSource: entities.BalanceSourceTournament},
			expectedError: entities.ErrWagerNotJoinable,
		},
		{
			name:          "already joined",
			wager:         func() *entities.Wager { return NewTestWager(entities.WagerKindMiniBattle, 3, 1, 10) },
			participants:  []string{TestUser1ID},
			req:           interfaces.JoinWagerRequest{WagerID: TestWagerID, UserID: TestUser1ID, BalanceSource: entities.BalanceSourceCommission},
			expectedError: entities.ErrAlreadyJoined,
		},
		{
			name:          "unknown balance source",
			wager:         func() *entities.Wager { return NewTestWager(entities.WagerKindMiniBattle, 3, 1, 10) },
			req:           interfaces.JoinWagerRequest{WagerID: TestWagerID, UserID: TestUser3ID, BalanceSource: "vesting"},
			expectedError: entities.ErrInvalidWager,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mocks := NewTestMocks()
			helper := NewMockHelper(mocks)
			wager := tt.wager()
			var participants []*entities.WagerParticipant
			for i, id := range tt.participants {
				participants = append(participants, NewTestParticipant(wager, int64(i+1), id, TestNow, nil))
			}
			helper.ExpectWagerLock(wager, participants...)

			_, err := mocks.Wagers().Join(context.Background(), tt.req)

			assert.ErrorIs(t, err, tt.expectedError)
			mocks.AccountRepo.AssertNotCalled(t, "GetByUserIDForUpdate", mock.Anything, mock.Anything)
		})
	}
}

func TestWagerService_JoinInsufficientBalance(t *testing.T) {
	mocks := NewTestMocks()
	helper := NewMockHelper(mocks)
	wager := NewTestWager(entities.WagerKindMiniBattle, 2, 1, 50)
	helper.ExpectWagerLock(wager, NewTestParticipant(wager, 1, TestUser1ID, TestNow, nil))
	helper.ExpectAccountLock(TestUser2ID, NewTestAccount(TestUser2ID, 0, 49))

	_, err := mocks.Wagers().Join(context.Background(), interfaces.JoinWagerRequest{
		WagerID:       wager.ID,
		UserID:        TestUser2ID,
		BalanceSource: entities.BalanceSourceTournament,
	})

	assert.ErrorIs(t, err, entities.ErrInsufficientBalance)
	mocks.WagerRepo.AssertNotCalled(t, "AddParticipant", mock.Anything, mock.Anything)
	assert.Equal(t, 1, wager.CurrentPlayers)
}

func TestWagerService_CancelRules(t *testing.T) {
	tests := []struct {
		name          string
		status        entities.WagerStatus
		requester     string
		expectedError error
	}{
		{"not the creator", entities.WagerStatusWaiting, TestUser2ID, entities.ErrNotAuthorized},
		{"already in progress", entities.WagerStatusInProgress, TestUser1ID, entities.ErrWagerNotCancellable},
		{"already completed", entities.WagerStatusCompleted, TestUser1ID, entities.ErrWagerNotCancellable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mocks := NewTestMocks()
			helper := NewMockHelper(mocks)
			wager := NewTestWager(entities.WagerKindChallenge, 4, 1, 10)
			wager.Status = tt.status
			helper.ExpectWagerLock(wager)

			_, err := mocks.Wagers().Cancel(context.Background(), wager.ID, tt.requester)

			assert.ErrorIs(t, err, tt.expectedError)
			mocks.WagerRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		})
	}
}

func TestWagerService_SubmitResultRules(t *testing.T) {
	tests := []struct {
		name          string
		kind          entities.WagerKind
		status        entities.WagerStatus
		user          string
		score         int64
		existing      *int64
		expectedError error
	}{
		{"negative score", entities.WagerKindMiniBattle, entities.WagerStatusInProgress, TestUser1ID, -1, nil, entities.ErrInvalidWager},
		{"not a participant", entities.WagerKindMiniBattle, entities.WagerStatusInProgress, TestUser3ID, 5, nil, entities.ErrNotParticipant},
		{"mini battle still waiting", entities.WagerKindMiniBattle, entities.WagerStatusWaiting, TestUser1ID, 5, nil, entities.ErrResultNotAccepted},
		{"completed", entities.WagerKindTournament, entities.WagerStatusCompleted, TestUser1ID, 5, nil, entities.ErrResultNotAccepted},
		{"second submission", entities.WagerKindMiniBattle, entities.WagerStatusInProgress, TestUser1ID, 5, Score(3), entities.ErrResultAlreadySubmitted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mocks := NewTestMocks()
			helper := NewMockHelper(mocks)
			wager := NewTestWager(tt.kind, 2, 2, 10)
			if tt.kind == entities.WagerKindTournament {
				wager.MaxPlayers = 25
			}
			wager.Status = tt.status
			helper.ExpectWagerLock(wager,
				NewTestParticipant(wager, 1, TestUser1ID, TestNow, tt.existing),
				NewTestParticipant(wager, 2, TestUser2ID, TestNow, nil))

			_, _, err := mocks.Wagers().SubmitResult(context.Background(), wager.ID, tt.user, tt.score)

			assert.ErrorIs(t, err, tt.expectedError)
			mocks.WagerRepo.AssertNotCalled(t, "UpdateParticipant", mock.Anything, mock.Anything)
		})
	}
}

func TestWagerService_Capacity(t *testing.T) {
	mocks := NewTestMocks()
	mocks.GameSettingsRepo.On("Get", mock.Anything, "chess").Return(nil, nil)
	mocks.GameSettingsRepo.On("Get", mock.Anything, TestGameType).Return(&entities.GameSettings{GameType: TestGameType, MaxActiveTournaments: 3}, nil)
	mocks.WagerRepo.On("CountActiveByGameType", mock.Anything, "chess").Return(4, nil)
	mocks.WagerRepo.On("CountActiveByGameType", mock.Anything, TestGameType).Return(3, nil)

	status, err := mocks.Wagers().Capacity(context.Background(), "chess")
	require.NoError(t, err)
	assert.Equal(t, 10, status.MaxActiveTournaments)
	assert.Equal(t, 6, status.Available())

	status, err = mocks.Wagers().Capacity(context.Background(), TestGameType)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Available())
	mocks.AssertAllExpectations(t)
}
