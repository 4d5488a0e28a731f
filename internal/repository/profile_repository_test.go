package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/digkill/InteriorAI/internal/models"
)

var profileRowColumns = []string{"id", "email", "display_name", "avatar_url", "credits", "has_purchased", "unlimited", "onboarding_completed", "created_at", "updated_at"}

func TestProfileEnsureCreatesWithInitialCredits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles WHERE id = ?")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(profileRowColumns))
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO profiles")).
		WithArgs("user-1", "a@example.com", "Ana", "", 3, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles WHERE id = ?")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(profileRowColumns).
			AddRow("user-1", "a@example.com", "Ana", "", 3, false, false, false, now, now))

	repo := NewProfileRepository(db)
	profile, created, err := repo.Ensure(context.Background(), models.Profile{ID: "user-1", Email: "a@example.com", DisplayName: "Ana", Credits: 3})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, 3, profile.Credits)
	require.Equal(t, models.OnboardingPending, profile.Onboarding())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileEnsureKeepsExistingBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles WHERE id = ?")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(profileRowColumns).
			AddRow("user-1", "a@example.com", "Ana", "", 0, false, false, true, now, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE profiles SET email")).
		WithArgs("a@example.com", "Ana", "", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewProfileRepository(db)
	profile, created, err := repo.Ensure(context.Background(), models.Profile{ID: "user-1", Email: "a@example.com", DisplayName: "Ana", Credits: 3})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, 0, profile.Credits)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileEnsureReturnsUpdatedFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles WHERE id = ?")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(profileRowColumns).
			AddRow("user-1", "old@example.com", "Ana", "https://cdn.example.com/a.png", 2, false, false, true, now, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE profiles SET email")).
		WithArgs("new@example.com", "Ana María", "", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewProfileRepository(db)
	profile, created, err := repo.Ensure(context.Background(), models.Profile{ID: "user-1", Email: "new@example.com", DisplayName: "Ana María", Credits: 3})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "new@example.com", profile.Email)
	require.Equal(t, "Ana María", profile.DisplayName)
	require.Equal(t, "https://cdn.example.com/a.png", profile.AvatarURL)
	require.Equal(t, 2, profile.Credits)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileConsumeCreditIsConditional(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	query := regexp.QuoteMeta("UPDATE profiles SET credits = credits - 1, updated_at = NOW() WHERE id = ? AND credits > 0")
	mock.ExpectExec(query).WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewProfileRepository(db)
	ok, err := repo.ConsumeCredit(context.Background(), "user-1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.ConsumeCredit(context.Background(), "user-1")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileCompleteOnboardingIsOneWay(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	query := regexp.QuoteMeta("WHERE id = ? AND onboarding_completed = 0")
	mock.ExpectExec(query).WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewProfileRepository(db)
	done, err := repo.CompleteOnboarding(context.Background(), "user-1")
	require.NoError(t, err)
	require.True(t, done)

	done, err = repo.CompleteOnboarding(context.Background(), "user-1")
	require.NoError(t, err)
	require.False(t, done)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileFindByIDMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles WHERE id = ?")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(profileRowColumns))

	profile, err := NewProfileRepository(db).FindByID(context.Background(), "ghost")
	require.NoError(t, err)
	require.Nil(t, profile)
}
