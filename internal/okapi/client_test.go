package okapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebypatrickleung/folio-migration-cli/internal/logger"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()

	r.Post("/authn/login", func(w http.ResponseWriter, r *http.Request) {
		var creds credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Password != "secret" {
			http.Error(w, "bad credentials", http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set(HeaderToken, "token-"+creds.Username)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"username":"` + creds.Username + `"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get(HeaderTenant) != "diku" || r.Header.Get(HeaderToken) != "token-admin" {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
			})
		})
		r.Post("/extractors", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write(body)
		})
		r.Put("/workflows/{id}/activate", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":"` + chi.URLParam(r, "id") + `","active":true}`))
		})
		r.Delete("/referenceData/{id}", func(w http.ResponseWriter, r *http.Request) {
			if chi.URLParam(r, "id") == "missing" {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/workflows/{id}", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":"` + chi.URLParam(r, "id") + `","active":false}`))
		})
		r.Get("/users", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("query") == "username==admin" {
				_, _ = w.Write([]byte(`{"users":[{"id":"u1","username":"admin"}],"totalRecords":1}`))
				return
			}
			_, _ = w.Write([]byte(`{"users":[],"totalRecords":0}`))
		})
		r.Get("/_/discovery/modules", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[
				{"srvcId":"mod-workflow-1.0.0","instId":"i1","url":"http://wf:8081"},
				{"srvcId":"mod-users-19.0.0","instId":"i2","url":"http://users:8081"},
				{"srvcId":"mod-workflow-1.1.0","instId":"i3","url":"http://wf2:8081"}
			]`))
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newLoggedInClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(srv.URL, "diku", logger.New(false))
	require.NoError(t, err)
	token, err := c.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)
	require.Equal(t, "token-admin", token)
	return c
}

func TestNewClientRejectsInvalidURL(t *testing.T) {
	_, err := NewClient("not a url", "diku", logger.New(false))
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)

	c, err := NewClient(srv.URL+"/", "diku", logger.New(false))
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "admin", "wrong")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Empty(t, c.Token())

	_, err = c.Login(context.Background(), "", "")
	assert.Error(t, err)

	token, err := c.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, "token-admin", token)
	assert.Equal(t, "token-admin", c.Token())
}

func TestCRUD(t *testing.T) {
	srv := newTestServer(t)
	c := newLoggedInClient(t, srv)
	ctx := context.Background()

	created, err := c.Create(ctx, "/extractors", map[string]any{"id": "e1", "name": "patrons"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"e1","name":"patrons"}`, string(created))

	updated, err := c.Update(ctx, "workflows/w1/activate", map[string]any{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"w1","active":true}`, string(updated))

	got, err := c.Get(ctx, srv.URL+"/workflows/w1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"w1","active":false}`, string(got))

	require.NoError(t, c.Delete(ctx, "/referenceData/r1"))

	err = c.Delete(ctx, "/referenceData/missing")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, http.MethodDelete, apiErr.Method)
	assert.Contains(t, apiErr.Error(), "not found")
}

func TestUnauthorized(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL, "diku", logger.New(false), WithToken("stale"))
	require.NoError(t, err)

	_, err = c.Create(context.Background(), "/extractors", map[string]any{})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestTransportError(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL, "diku", logger.New(false))
	require.NoError(t, err)
	srv.Close()

	_, err = c.Get(context.Background(), "/workflows/w1")
	require.Error(t, err)
	var apiErr *Error
	assert.False(t, errors.As(err, &apiErr))
}

func TestResolve(t *testing.T) {
	c, err := NewClient("http://okapi:9130/", "diku", logger.New(false))
	require.NoError(t, err)

	assert.Equal(t, "http://okapi:9130/triggers", c.Resolve("/triggers"))
	assert.Equal(t, "http://okapi:9130/triggers", c.Resolve("triggers"))
	assert.Equal(t, "http://wf:8081/triggers", c.Resolve("http://wf:8081/triggers"))
}

func TestGetUser(t *testing.T) {
	srv := newTestServer(t)
	c := newLoggedInClient(t, srv)

	user, err := c.GetUser(context.Background(), "admin")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u1","username":"admin"}`, string(user))

	_, err = c.GetUser(context.Background(), "nobody")
	assert.Error(t, err)
}

func TestLookupModule(t *testing.T) {
	srv := newTestServer(t)
	c := newLoggedInClient(t, srv)

	modules, err := c.LookupModule(context.Background(), "mod-workflow")
	require.NoError(t, err)
	require.Len(t, modules, 2)
	assert.Equal(t, "http://wf:8081", modules[0].URL)
	assert.Equal(t, "i3", modules[1].InstID)
}
