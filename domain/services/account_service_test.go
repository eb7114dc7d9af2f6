package services

import (
	"context"
	"testing"

	"mxiledger/domain/entities"
	"mxiledger/domain/events"
	"mxiledger/domain/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubReferrals struct {
	referred, referrer string
	err                error
}

func (s *stubReferrals) Link(_ context.Context, referredID, referrerID string) ([]*entities.ReferralEdge, error) {
	s.referred, s.referrer = referredID, referrerID
	if s.err != nil {
		return nil, s.err
	}
	return []*entities.ReferralEdge{{ReferrerID: referrerID, ReferredID: referredID, Level: 1}}, nil
}

func TestAccountService_Register(t *testing.T) {
	tests := []struct {
		name          string
		email         string
		referralCode  string
		setupMocks    func(*TestMocks, *MockHelper)
		expectedError error
		expectLink    bool
	}{
		{
			name:  "plain registration",
			email: "  New@Example.com ",
			setupMocks: func(mocks *TestMocks, helper *MockHelper) {
				mocks.UserRepo.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, nil)
				mocks.UserRepo.On("ReferralCodeExists", mock.Anything, mock.Anything).Return(false, nil)
				mocks.UserRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *entities.User) bool {
					return u.Email == "new@example.com" && len(u.ReferralCode) == ReferralCodeLength
				})).Return(nil)
				mocks.AccountRepo.On("Create", mock.Anything, mock.MatchedBy(func(a *entities.Account) bool {
					return a.TotalMXI.IsZero() && a.MonthlyVestingRate.Equal(entities.DefaultMonthlyVestingRate)
				})).Return(nil)
				helper.ExpectEventPublish(events.EventTypeAccountCreated)
			},
		},
		{
			name:          "empty email",
			email:         "   ",
			setupMocks:    func(*TestMocks, *MockHelper) {},
			expectedError: entities.ErrInvalidRequest,
		},
		{
			name:  "email taken",
			email: "taken@example.com",
			setupMocks: func(mocks *TestMocks, helper *MockHelper) {
				mocks.UserRepo.On("GetByEmail", mock.Anything, "taken@example.com").Return(&entities.User{ID: "someone"}, nil)
			},
			expectedError: entities.ErrUserExists,
		},
		{
			name:         "unknown referral code",
			email:        "new@example.com",
			referralCode: "nope",
			setupMocks: func(mocks *TestMocks, helper *MockHelper) {
				mocks.UserRepo.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, nil)
				mocks.UserRepo.On("GetByReferralCode", mock.Anything, "NOPE").Return(nil, nil)
			},
			expectedError: entities.ErrNotFound,
		},
		{
			name:         "referral code links the referrer",
			email:        "new@example.com",
			referralCode: "abcd2345",
			setupMocks: func(mocks *TestMocks, helper *MockHelper) {
				mocks.UserRepo.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, nil)
				mocks.UserRepo.On("GetByReferralCode", mock.Anything, "ABCD2345").Return(&entities.User{ID: TestUser2ID}, nil)
				mocks.UserRepo.On("ReferralCodeExists", mock.Anything, mock.Anything).Return(false, nil)
				mocks.UserRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
				mocks.AccountRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
				mocks.EventPublisher.On("Publish", mock.MatchedBy(func(e events.AccountCreatedEvent) bool {
					return e.ReferrerID != nil && *e.ReferrerID == TestUser2ID
				})).Return(nil)
			},
			expectLink: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mocks := NewTestMocks()
			helper := NewMockHelper(mocks)
			tt.setupMocks(mocks, helper)
			referrals := &stubReferrals{}

			service := NewAccountService(mocks.UserRepo, mocks.AccountRepo, referrals, mocks.EventPublisher, mocks.Clock)
			result, err := service.Register(context.Background(), interfaces.RegisterRequest{
				Email:        tt.email,
				ReferralCode: tt.referralCode,
			})

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				mocks.UserRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, result.User.ID, result.Account.UserID)
			if tt.expectLink {
				assert.Equal(t, result.User.ID, referrals.referred)
				assert.Equal(t, TestUser2ID, referrals.referrer)
				assert.Len(t, result.Edges, 1)
			} else {
				assert.Empty(t, referrals.referrer)
			}
			mocks.AssertAllExpectations(t)
		})
	}
}
