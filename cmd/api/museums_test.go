package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"museum.zuyanh.net/internal/entity"
	"museum.zuyanh.net/internal/repository"
)

func TestListMuseums(t *testing.T) {
	t.Run("from database", func(t *testing.T) {
		ta := newTestApplication(t)
		ta.config.Fallback.Enabled = true

		ta.museums.On("GetAll", "", "Hyderabad", "", mock.AnythingOfType("repository.Filters")).
			Return([]*entity.Museum{testMuseum()}, repository.Metadata{CurrentPage: 1, TotalRecords: 1}, nil)

		res := ta.do(t, http.MethodGet, "/v1/museums?city=Hyderabad", nil, false)

		require.Equal(t, http.StatusOK, res.status)
		body := res.decode(t)
		assert.Len(t, body["museums"], 1)
		assert.NotContains(t, body, "fallback")
	})

	t.Run("fallback when empty", func(t *testing.T) {
		ta := newTestApplication(t)
		ta.config.Fallback.Enabled = true

		ta.museums.On("GetAll", "", "Mumbai", "", mock.AnythingOfType("repository.Filters")).
			Return([]*entity.Museum{}, repository.Metadata{}, nil)

		res := ta.do(t, http.MethodGet, "/v1/museums?city=Mumbai", nil, false)

		require.Equal(t, http.StatusOK, res.status)
		body := res.decode(t)
		assert.Equal(t, true, body["fallback"])
		museums := body["museums"].([]any)
		require.NotEmpty(t, museums)
		assert.EqualValues(t, len(museums), body["metadata"].(map[string]any)["total_records"])
		for _, m := range museums {
			assert.Equal(t, "Mumbai", m.(map[string]any)["city"])
		}
	})

	t.Run("fallback disabled", func(t *testing.T) {
		ta := newTestApplication(t)

		ta.museums.On("GetAll", "", "", "", mock.AnythingOfType("repository.Filters")).
			Return([]*entity.Museum{}, repository.Metadata{}, nil)

		res := ta.do(t, http.MethodGet, "/v1/museums", nil, false)

		require.Equal(t, http.StatusOK, res.status)
		body := res.decode(t)
		assert.Empty(t, body["museums"])
		assert.NotContains(t, body, "fallback")
	})

	t.Run("bad sort", func(t *testing.T) {
		ta := newTestApplication(t)

		res := ta.do(t, http.MethodGet, "/v1/museums?sort=password", nil, false)

		assert.Equal(t, http.StatusUnprocessableEntity, res.status)
	})
}

func TestShowMuseum(t *testing.T) {
	ta := newTestApplication(t)
	ta.config.Fallback.Enabled = true

	ta.museums.On("Get", int64(7)).Return(testMuseum(), nil)
	ta.museums.On("Get", int64(1)).Return(nil, repository.ErrRecordNotFound)
	ta.museums.On("Get", int64(999)).Return(nil, repository.ErrRecordNotFound)

	res := ta.do(t, http.MethodGet, "/v1/museums/7", nil, false)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "Salar Jung Museum", res.decode(t)["museum"].(map[string]any)["name"])

	res = ta.do(t, http.MethodGet, "/v1/museums/1", nil, false)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, true, res.decode(t)["fallback"])

	res = ta.do(t, http.MethodGet, "/v1/museums/999", nil, false)
	assert.Equal(t, http.StatusNotFound, res.status)

	res = ta.do(t, http.MethodGet, "/v1/museums/abc", nil, false)
	assert.Equal(t, http.StatusNotFound, res.status)
}

func TestCreateMuseum(t *testing.T) {
	body := map[string]any{
		"name":          "Salar Jung Museum",
		"city":          "Hyderabad",
		"category":      "art",
		"opening_hours": "10:00-17:00",
		"ticket_types":  []map[string]any{{"name": "adult", "price": "50"}},
	}

	t.Run("admin", func(t *testing.T) {
		ta := newTestApplication(t)
		ta.loginAs(&entity.User{ID: 1, Activated: true}, repository.PermissionAdmin)

		ta.museums.On("Insert", mock.AnythingOfType("*entity.Museum")).Run(func(args mock.Arguments) {
			args.Get(0).(*entity.Museum).ID = 7
		}).Return(nil)

		res := ta.do(t, http.MethodPost, "/v1/museums", body, true)

		require.Equal(t, http.StatusCreated, res.status, string(res.body))
		assert.Equal(t, "/v1/museums/7", res.header.Get("Location"))
	})

	t.Run("duplicate", func(t *testing.T) {
		ta := newTestApplication(t)
		ta.loginAs(&entity.User{ID: 1, Activated: true}, repository.PermissionAdmin)

		ta.museums.On("Insert", mock.Anything).Return(repository.ErrDuplicateConstraint)

		res := ta.do(t, http.MethodPost, "/v1/museums", body, true)

		assert.Equal(t, http.StatusConflict, res.status)
	})

	t.Run("anonymous", func(t *testing.T) {
		ta := newTestApplication(t)

		res := ta.do(t, http.MethodPost, "/v1/museums", body, false)

		assert.Equal(t, http.StatusUnauthorized, res.status)
	})

	t.Run("inactive", func(t *testing.T) {
		ta := newTestApplication(t)
		ta.users.On("GetForToken", entity.ScopeAuthentication, testToken).Return(&entity.User{ID: 1}, nil)

		res := ta.do(t, http.MethodPost, "/v1/museums", body, true)

		assert.Equal(t, http.StatusForbidden, res.status)
	})
}

func TestUpdateMuseum(t *testing.T) {
	t.Run("partial", func(t *testing.T) {
		ta := newTestApplication(t)
		ta.loginAs(&entity.User{ID: 1, Activated: true}, repository.PermissionAdmin)

		ta.museums.On("Get", int64(7)).Return(testMuseum(), nil)
		ta.museums.On("Update", mock.MatchedBy(func(m *entity.Museum) bool {
			return m.OpeningHours == "09:00-18:00" && m.Name == "Salar Jung Museum"
		})).Return(nil)

		res := ta.do(t, http.MethodPatch, "/v1/museums/7", map[string]any{"opening_hours": "09:00-18:00"}, true)

		require.Equal(t, http.StatusOK, res.status, string(res.body))
	})

	t.Run("conflict", func(t *testing.T) {
		ta := newTestApplication(t)
		ta.loginAs(&entity.User{ID: 1, Activated: true}, repository.PermissionAdmin)

		ta.museums.On("Get", int64(7)).Return(testMuseum(), nil)
		ta.museums.On("Update", mock.Anything).Return(repository.ErrEditConflict)

		res := ta.do(t, http.MethodPatch, "/v1/museums/7", map[string]any{"city": "Secunderabad"}, true)

		assert.Equal(t, http.StatusConflict, res.status)
	})
}

func TestDeleteMuseumWithBookings(t *testing.T) {
	ta := newTestApplication(t)
	ta.loginAs(&entity.User{ID: 1, Activated: true}, repository.PermissionAdmin)

	ta.museums.On("Delete", int64(7)).Return(repository.ErrViolatesForeignKey)

	res := ta.do(t, http.MethodDelete, "/v1/museums/7", nil, true)

	assert.Equal(t, http.StatusConflict, res.status)
}

func TestListMuseumEvents(t *testing.T) {
	ta := newTestApplication(t)

	ta.museums.On("Get", int64(7)).Return(testMuseum(), nil)
	ta.events.On("GetAll", int64(7), "", "", true, mock.AnythingOfType("repository.Filters")).
		Return([]*entity.Event{{ID: 11, MuseumID: 7, Title: "Night at the Museum"}}, repository.Metadata{}, nil)

	res := ta.do(t, http.MethodGet, "/v1/museums/7/events", nil, false)

	require.Equal(t, http.StatusOK, res.status)
	assert.Len(t, res.decode(t)["events"], 1)
}
