package repository

import (
	"context"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/composedlabyrinth/SwiftKYC/internal/database"
	"github.com/composedlabyrinth/SwiftKYC/internal/model"
	"github.com/composedlabyrinth/SwiftKYC/internal/storage"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("SWIFTKYC_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SWIFTKYC_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.EnsureSchema(ctx, pool))
	return New(pool)
}

func TestRepositoryRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	mobile := uuid.NewString()[:10]

	customer, err := repo.UpsertCustomer(ctx, &model.Customer{ID: uuid.NewString(), Name: "Ravi Sharma", Mobile: mobile, CreatedAt: now})
	require.NoError(t, err)
	again, err := repo.UpsertCustomer(ctx, &model.Customer{ID: uuid.NewString(), Name: "Ravi K Sharma", Mobile: mobile, CreatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, customer.ID, again.ID)
	assert.Equal(t, "Ravi K Sharma", again.Name)

	session := model.NewSession(uuid.NewString(), customer.ID, now)
	require.NoError(t, repo.CreateSession(ctx, session))

	first := &model.Document{ID: uuid.NewString(), SessionID: session.ID, DocType: model.DocTypeNumeric12, CreatedAt: now}
	second := &model.Document{ID: uuid.NewString(), SessionID: session.ID, DocType: model.DocTypeAlphanum10, CreatedAt: now}
	require.NoError(t, repo.CreateDocument(ctx, first))
	require.NoError(t, repo.CreateDocument(ctx, second))

	number := "ABCDE1234F"
	score := 0.87
	second.DocNumber = &number
	second.Validity = model.ValidityValid
	second.QualityScore = &score
	require.NoError(t, repo.UpdateDocument(ctx, second))

	docs, err := repo.ListDocuments(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, second.ID, docs[0].ID)
	assert.Equal(t, model.ValidityValid, docs[0].Validity)
	assert.Equal(t, model.ValidityUnset, docs[1].Validity)

	session.SetFailure("DOC_NOT_VALID")
	session.RetriesSelfie = 2
	session.CurrentStep = model.StepSelfie
	require.NoError(t, repo.UpdateSession(ctx, session))
	loaded, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "DOC_NOT_VALID", loaded.Failure())
	assert.Equal(t, 2, loaded.RetriesSelfie)
	assert.Equal(t, model.StepSelfie, loaded.CurrentStep)

	list, err := repo.ListSessions(ctx, model.SessionFilter{DocType: model.DocTypeNumeric12, CreatedFrom: &now, CreatedTo: &now})
	require.NoError(t, err)
	var found *model.SessionSummary
	for i := range list {
		if list[i].ID == session.ID {
			found = &list[i]
		}
	}
	require.NotNil(t, found)
	require.NotNil(t, found.LatestDocType)
	assert.Equal(t, model.DocTypeAlphanum10, *found.LatestDocType)
}

func TestRepositoryNotFound(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.GetSession(ctx, uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = repo.GetCustomer(ctx, uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)
	err = repo.UpdateSession(ctx, model.NewSession(uuid.NewString(), "c", time.Now()))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// valuesRow is a pgx.Row that copies fixed values into the scan targets.
type valuesRow []any

func (r valuesRow) Scan(dest ...any) error {
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r[i]))
	}
	return nil
}

func sessionRow(status, step string) valuesRow {
	now := time.Now().UTC()
	return valuesRow{
		"s1", "c1", status, step, (*string)(nil),
		0, 0, 0, 1,
		(*string)(nil), (*float64)(nil), now, now,
	}
}

func TestScanSessionParsesEnums(t *testing.T) {
	s, err := scanSession(sessionRow("IN_PROGRESS", "KYC_CHECK"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, s.Status)
	assert.Equal(t, model.StepKYCCheck, s.CurrentStep)
	assert.Equal(t, 1, s.RetriesSelfie)

	var latest *model.DocType
	row := append(sessionRow("REJECTED", "KYC_CHECK"), (*model.DocType)(nil))
	s, err = scanSession(row, &latest)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, s.Status)
	assert.Nil(t, latest)
}

func TestScanSessionRejectsCorruptRows(t *testing.T) {
	_, err := scanSession(sessionRow("PENDING", "SELFIE"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown status "PENDING"`)

	_, err = scanSession(sessionRow("IN_PROGRESS", "UPLOAD"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown step "UPLOAD"`)
}
