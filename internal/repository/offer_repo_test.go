package repository

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simtrek/esim_api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func sampleOffer(country string) models.BestOffer {
	return models.BestOffer{
		CountryCode:       country,
		DataAmountMB:      1024,
		ValidityDays:      7,
		ProviderID:        1,
		ProviderProductID: "PKG1",
		CostPrice:         decimal.RequireFromString("10"),
		SellPrice:         decimal.RequireFromString("12"),
		Margin:            decimal.RequireFromString("2"),
		Currency:          "USD",
	}
}

func TestReplaceAllDeletesThenInsertsInOneTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOfferRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM best_offers`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectPrepare(`INSERT INTO best_offers`)
	mock.ExpectExec(`INSERT INTO best_offers`).
		WithArgs("TR", 1024, 7, 1, "PKG1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "USD").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO best_offers`).
		WithArgs("US", 1024, 7, 1, "PKG1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "USD").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := repo.ReplaceAll([]models.BestOffer{sampleOffer("TR"), sampleOffer("US")})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceAllRollsBackOnInsertFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOfferRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM best_offers`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare(`INSERT INTO best_offers`)
	mock.ExpectExec(`INSERT INTO best_offers`).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := repo.ReplaceAll([]models.BestOffer{sampleOffer("US")})

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByKeyReturnsNilWhenAbsent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOfferRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT o.*, p.slug AS provider_slug`)).
		WithArgs("US", 1024, 7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	offer, err := repo.GetByKey(models.OfferKey{CountryCode: "US", DataAmountMB: 1024, ValidityDays: 7})

	require.NoError(t, err)
	assert.Nil(t, offer)
	assert.NoError(t, mock.ExpectationsWereMet())
}
