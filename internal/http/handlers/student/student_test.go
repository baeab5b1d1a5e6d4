package student

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aanand-mishra/etudiants-api/internal/storage"
	"github.com/aanand-mishra/etudiants-api/internal/storage/storagetest"
	"github.com/aanand-mishra/etudiants-api/internal/types"
)

const internalBody = `{"success":false,"error":500,"message":"Internal Server Error"}`

var errBroken = errors.New("connection refused: db.internal:5432")

// stubStore answers every call with err unless a per-method hook is set.
type stubStore struct {
	err   error
	calls []string

	get    func(id int64) (types.Student, error)
	create func(p types.StudentPayload) (int64, error)
}

func (s *stubStore) CreateStudent(_ context.Context, p types.StudentPayload) (int64, error) {
	s.calls = append(s.calls, "create")
	if s.create != nil {
		return s.create(p)
	}
	return 0, s.err
}

func (s *stubStore) GetStudentByID(_ context.Context, id int64) (types.Student, error) {
	s.calls = append(s.calls, "get")
	if s.get != nil {
		return s.get(id)
	}
	return types.Student{}, s.err
}

func (s *stubStore) GetStudents(context.Context) ([]types.Student, error) {
	s.calls = append(s.calls, "list")
	if s.err != nil {
		return nil, s.err
	}
	return []types.Student{}, nil
}

func (s *stubStore) CountStudents(context.Context) (int64, error) {
	s.calls = append(s.calls, "count")
	return 0, s.err
}

func (s *stubStore) UpdateStudentByID(context.Context, int64, types.StudentPayload) (types.Student, error) {
	s.calls = append(s.calls, "update")
	return types.Student{}, s.err
}

func (s *stubStore) DeleteStudentByID(context.Context, int64) (types.Student, error) {
	s.calls = append(s.calls, "delete")
	return types.Student{}, s.err
}

func (s *stubStore) Ping(context.Context) error { return s.err }

func (s *stubStore) Close() error { return nil }

func serve(h http.HandlerFunc, method, pattern, target, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(method, pattern, h)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlers_StoreFailureIsFixed500(t *testing.T) {
	found := func(id int64) (types.Student, error) {
		return types.Student{ID: id, LastName: "Dupont"}, nil
	}

	tests := []struct {
		name    string
		handler func(storage.Storage, *zap.Logger) http.HandlerFunc
		method  string
		pattern string
		target  string
		body    string
		store   *stubStore
	}{
		{"list", GetList, http.MethodGet, "/etudiants", "/etudiants", "", &stubStore{err: errBroken}},
		{"get", GetByID, http.MethodGet, "/etudiants/{id}", "/etudiants/1", "", &stubStore{err: errBroken}},
		{"create", New, http.MethodPost, "/etudiants", "/etudiants", `{"last_name":"Dupont"}`, &stubStore{err: errBroken}},
		{
			"create constraint violation", New, http.MethodPost, "/etudiants", "/etudiants", `{"last_name":"Dupont"}`,
			&stubStore{err: errors.Wrap(storage.ErrConstraintViolation, "insert student")},
		},
		{
			"update", Update, http.MethodPatch, "/etudiants/{id}", "/etudiants/1", `{"last_name":"Dupont"}`,
			&stubStore{err: errBroken, get: found},
		},
		{"delete", Delete, http.MethodDelete, "/etudiants/{id}", "/etudiants/1", "", &stubStore{err: errBroken}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.ErrorLevel)

			w := serve(tt.handler(tt.store, zap.New(core)), tt.method, tt.pattern, tt.target, tt.body)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.JSONEq(t, internalBody, w.Body.String())
			assert.NotContains(t, w.Body.String(), "db.internal")
			assert.Equal(t, 1, logs.Len())
		})
	}
}

func TestCreate_ListFailureAfterInsert(t *testing.T) {
	store := &stubStore{
		err:    errBroken,
		create: func(types.StudentPayload) (int64, error) { return 1, nil },
	}

	w := serve(New(store, zap.NewNop()), http.MethodPost, "/etudiants", "/etudiants", `{"last_name":"Dupont"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, []string{"create", "list"}, store.calls)
}

func TestCreate_PassesNilForMissingKeys(t *testing.T) {
	var got types.StudentPayload
	store := &stubStore{
		create: func(p types.StudentPayload) (int64, error) {
			got = p
			return 1, nil
		},
	}

	w := serve(New(store, zap.NewNop()), http.MethodPost, "/etudiants", "/etudiants",
		`{"last_name":"Dupont","first_name":null}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"total":0,"items":[]}`, w.Body.String())
	require.NotNil(t, got.LastName)
	assert.Equal(t, "Dupont", *got.LastName)
	assert.Nil(t, got.FirstName)
	assert.Nil(t, got.Address)
}

func TestCreate_InvalidPayloadNeverReachesStore(t *testing.T) {
	store := &stubStore{}

	w := serve(New(store, zap.NewNop()), http.MethodPost, "/etudiants", "/etudiants", `{"first_name":"Jean"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.calls)
}

func TestCreate_OversizedBody(t *testing.T) {
	store := &stubStore{}
	body := `{"last_name":"` + strings.Repeat("a", maxBodyBytes) + `"}`

	w := serve(New(store, zap.NewNop()), http.MethodPost, "/etudiants", "/etudiants", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.calls)
}

func TestUpdate_ResolvesIDBeforeBody(t *testing.T) {
	store := &stubStore{err: storage.ErrNotFound}

	w := serve(Update(store, zap.NewNop()), http.MethodPatch, "/etudiants/{id}", "/etudiants/5", `not json`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, []string{"get"}, store.calls)
}

func TestUpdate_RowVanishedBeforeWrite(t *testing.T) {
	store := &stubStore{
		err: errors.Wrap(storage.ErrNotFound, "update student"),
		get: func(id int64) (types.Student, error) { return types.Student{ID: id, LastName: "Dupont"}, nil },
	}

	w := serve(Update(store, zap.NewNop()), http.MethodPatch, "/etudiants/{id}", "/etudiants/5", `{"last_name":"X"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, []string{"get", "update"}, store.calls)
}

func TestDelete_SkipsCountWhenMissing(t *testing.T) {
	store := &stubStore{err: storage.ErrNotFound}

	w := serve(Delete(store, zap.NewNop()), http.MethodDelete, "/etudiants/{id}", "/etudiants/5", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, []string{"delete"}, store.calls)
}

func TestParseID(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{"1", 1, true},
		{"0042", 42, true},
		{"9223372036854775807", 9223372036854775807, true},
		{"9223372036854775808", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.raw)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			got, ok := parseID(req)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidatorUsesJSONNames(t *testing.T) {
	err := validate.Struct(types.StudentPayload{Address: storagetest.StringPtr(strings.Repeat("a", 101))})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "last_name")
	assert.Contains(t, err.Error(), "address")
}

func TestCreate_TrailingDataNeverReachesStore(t *testing.T) {
	store := &stubStore{}

	w := serve(New(store, zap.NewNop()), http.MethodPost, "/etudiants", "/etudiants",
		`{"last_name":"A"}{"last_name":"B"} trailing`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.calls)
}

func TestCreate_TrailingWhitespaceAccepted(t *testing.T) {
	store := &stubStore{
		create: func(types.StudentPayload) (int64, error) { return 1, nil },
	}

	w := serve(New(store, zap.NewNop()), http.MethodPost, "/etudiants", "/etudiants",
		"{\"last_name\":\"A\"}\n\t ")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"create", "list"}, store.calls)
}
