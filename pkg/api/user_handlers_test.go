package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/middenhq/midden/pkg/auth"
	"github.com/middenhq/midden/pkg/storage/postgres"
)

type fakeDirectory struct {
	records []postgres.UserRecord
	listErr error

	roles   map[int64]string
	roleErr error

	updated map[int64]int64
	deleted []int64
}

func (f *fakeDirectory) List(_ context.Context) ([]postgres.UserRecord, error) {
	return f.records, f.listErr
}

func (f *fakeDirectory) RoleName(_ context.Context, userID int64) (string, error) {
	if f.roleErr != nil {
		return "", f.roleErr
	}
	role, ok := f.roles[userID]
	if !ok {
		return "", auth.ErrNotFound
	}
	return role, nil
}

func (f *fakeDirectory) UpdateRole(_ context.Context, userID, roleID int64) error {
	if f.updated == nil {
		f.updated = make(map[int64]int64)
	}
	f.updated[userID] = roleID
	return nil
}

func (f *fakeDirectory) Delete(_ context.Context, userID int64) error {
	f.deleted = append(f.deleted, userID)
	return nil
}

func pathRequest(method, path, id string, payload interface{}) *http.Request {
	var body *bytes.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	return mux.SetURLVars(req, map[string]string{"id": id})
}

func TestListUsers(t *testing.T) {
	directory := &fakeDirectory{records: []postgres.UserRecord{
		{ID: 1, Username: "root", Email: "root@example.com", Role: "Admin"},
		{ID: 2, Username: "alice", Email: "alice@example.com", Role: "Viewer"},
	}}
	h := NewUserHandlers(directory, testLogger())

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/users", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Users []postgres.UserRecord `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Users, 2)
	assert.Equal(t, "root", body.Users[0].Username)
	assert.Equal(t, "Admin", body.Users[0].Role)
}

func TestListUsers_DatabaseError(t *testing.T) {
	directory := &fakeDirectory{listErr: errors.New("db down")}
	h := NewUserHandlers(directory, testLogger())

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/users", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Database error", decodeBody(t, rec)["error"])
}

func TestDeleteUser_Success(t *testing.T) {
	directory := &fakeDirectory{roles: map[int64]string{2: "Viewer"}}
	h := NewUserHandlers(directory, testLogger())

	rec := httptest.NewRecorder()
	h.Delete(rec, pathRequest("DELETE", "/users/2", "2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User deleted successfully", decodeBody(t, rec)["message"])
	assert.Equal(t, []int64{2}, directory.deleted)
}

func TestDeleteUser_NotFound(t *testing.T) {
	directory := &fakeDirectory{roles: map[int64]string{}}
	h := NewUserHandlers(directory, testLogger())

	rec := httptest.NewRecorder()
	h.Delete(rec, pathRequest("DELETE", "/users/99", "99", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", decodeBody(t, rec)["error"])
	assert.Empty(t, directory.deleted)
}

func TestDeleteUser_AdminProtected(t *testing.T) {
	directory := &fakeDirectory{roles: map[int64]string{1: "Admin"}}
	h := NewUserHandlers(directory, testLogger())

	rec := httptest.NewRecorder()
	h.Delete(rec, pathRequest("DELETE", "/users/1", "1", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Cannot delete an Admin user", decodeBody(t, rec)["error"])
	assert.Empty(t, directory.deleted)
}

func TestUpdateRole_Success(t *testing.T) {
	directory := &fakeDirectory{roles: map[int64]string{2: "Viewer"}}
	h := NewUserHandlers(directory, testLogger())

	rec := httptest.NewRecorder()
	h.UpdateRole(rec, pathRequest("PATCH", "/users/2/role", "2", UpdateRoleRequest{RoleID: 2}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User role updated", decodeBody(t, rec)["message"])
	assert.Equal(t, int64(2), directory.updated[2])
}

func TestUpdateRole_MissingRoleID(t *testing.T) {
	directory := &fakeDirectory{roles: map[int64]string{2: "Viewer"}}
	h := NewUserHandlers(directory, testLogger())

	rec := httptest.NewRecorder()
	h.UpdateRole(rec, pathRequest("PATCH", "/users/2/role", "2", map[string]interface{}{}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "roleId is required", decodeBody(t, rec)["error"])
	assert.Empty(t, directory.updated)
}

func TestUpdateRole_AdminProtected(t *testing.T) {
	directory := &fakeDirectory{roles: map[int64]string{1: "Admin"}}
	h := NewUserHandlers(directory, testLogger())

	rec := httptest.NewRecorder()
	h.UpdateRole(rec, pathRequest("PATCH", "/users/1/role", "1", UpdateRoleRequest{RoleID: 3}))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Cannot modify role of an Admin user", decodeBody(t, rec)["error"])
	assert.Empty(t, directory.updated)
}

func TestUpdateRole_NotFound(t *testing.T) {
	directory := &fakeDirectory{roles: map[int64]string{}}
	h := NewUserHandlers(directory, testLogger())

	rec := httptest.NewRecorder()
	h.UpdateRole(rec, pathRequest("PATCH", "/users/99/role", "99", UpdateRoleRequest{RoleID: 2}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", decodeBody(t, rec)["error"])
}
