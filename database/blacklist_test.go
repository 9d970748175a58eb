/*
Copyright 2024 Bridgecast Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/bridgecast/bridgecast/internal/apierror"
	"github.com/bridgecast/bridgecast/model"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestCreateBlacklistEntry_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := &Datasource{Conn: db}

	mock.ExpectExec("INSERT INTO blacklists").
		WithArgs(sqlmock.AnyArg(), "slurs", "(?i)badword").
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.CreateBlacklistEntry(context.Background(), &model.BlacklistEntry{
		Name:    "slurs",
		Pattern: "(?i)badword",
	})
	assert.NoError(t, err)
	assert.Contains(t, created.ID, "blk_")
}

func TestCreateBlacklistEntry_RejectsInvalidPattern(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := &Datasource{Conn: db}

	// A pattern that can never compile is rejected before touching the
	// database.
	_, err = ds.CreateBlacklistEntry(context.Background(), &model.BlacklistEntry{
		Name:    "broken",
		Pattern: "([unclosed",
	})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
}

func TestCreateBlacklistEntry_DuplicateName(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := &Datasource{Conn: db}

	mock.ExpectExec("INSERT INTO blacklists").
		WillReturnError(&pq.Error{Code: "23505", Message: "unique_violation"})

	_, err = ds.CreateBlacklistEntry(context.Background(), &model.BlacklistEntry{
		Name:    "slurs",
		Pattern: "badword",
	})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func TestGetBlacklist_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := &Datasource{Conn: db}

	rows := sqlmock.NewRows([]string{"blacklist_id", "name", "pattern"}).
		AddRow("blk_1", "invites", `discord\.gg`).
		AddRow("blk_2", "slurs", "(?i)badword")
	mock.ExpectQuery("SELECT blacklist_id, name, pattern").WillReturnRows(rows)

	entries, err := ds.GetBlacklist(context.Background())
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "invites", entries[0].Name)
}

func TestDeleteBlacklistEntry_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := &Datasource{Conn: db}

	mock.ExpectExec("DELETE FROM blacklists").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.DeleteBlacklistEntry(context.Background(), "missing")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}
