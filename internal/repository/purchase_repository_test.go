package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/digkill/InteriorAI/internal/models"
)

func TestPurchaseGrantCreditsAndFlagsProfile(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	planID := int64(2)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO purchases")).
		WithArgs("user-1", int64(2), "admin", "", "EUR", 1900, "completed").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE profiles SET credits = credits + ?, has_purchased = 1")).
		WithArgs(50, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	purchase := &models.Purchase{UserID: "user-1", PlanID: &planID, Provider: "admin", Currency: "EUR", Amount: 1900, Status: "completed"}
	require.NoError(t, NewPurchaseRepository(db).Grant(context.Background(), purchase, 50))
	require.EqualValues(t, 7, purchase.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseGrantRollsBackForUnknownProfile(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO purchases")).
		WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE profiles SET credits = credits + ?")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	purchase := &models.Purchase{UserID: "ghost", Provider: "admin", Currency: "EUR", Status: "completed"}
	err = NewPurchaseRepository(db).Grant(context.Background(), purchase, 10)
	require.True(t, errors.Is(err, ErrNoRowsAffected))
	require.Zero(t, purchase.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
