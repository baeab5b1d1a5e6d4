// Package student contains the HTTP handlers for the etudiants resource.
//
// Each exported function is a factory: it receives its dependencies once,
// at route registration, and returns the http.HandlerFunc that serves every
// request:
//
//	router.Get("/etudiants", student.GetList(store, lg))
//
// REQUEST FLOW (create and update):
//  1. Resolve the {id} path segment (update only): unknown id → 404
//  2. Decode exactly one JSON object from the body: empty, malformed or
//     trailing data → 400
//  3. Validate the payload (last_name required, lengths) → 400
//  4. Write to the store; any store error other than not-found → 500
//  5. Encode the success envelope
//
// Update resolves the id before reading the body, so a missing row answers
// 404 whatever the body holds. Error bodies are the fixed envelopes from
// package response; details only go to the log.
package student

import (
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/aanand-mishra/etudiants-api/internal/http/middleware"
	"github.com/aanand-mishra/etudiants-api/internal/storage"
	"github.com/aanand-mishra/etudiants-api/internal/types"
	"github.com/aanand-mishra/etudiants-api/internal/utils/response"
)

// maxBodyBytes bounds create and update payloads.
const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ListResponse is returned by list-all and create. Create answers with the
// whole refreshed collection, not only the new row; existing clients rely
// on that shape.
type ListResponse struct {
	Success bool            `json:"success"`
	Total   int             `json:"total"`
	Items   []types.Student `json:"items"`
}

// GetResponse is returned by get-by-id.
type GetResponse struct {
	Success    bool          `json:"success"`
	SelectedID int64         `json:"selected_id"`
	Item       types.Student `json:"item"`
}

// UpdateResponse is returned by update.
type UpdateResponse struct {
	Success   bool          `json:"success"`
	UpdatedID int64         `json:"updated_id"`
	Item      types.Student `json:"item"`
}

// DeleteResponse is returned by delete. Item holds the row's last values
// and Total the count after removal.
type DeleteResponse struct {
	Success bool          `json:"success"`
	ID      int64         `json:"id"`
	Item    types.Student `json:"item"`
	Total   int64         `json:"total"`
}

// GetList handles GET /etudiants.
func GetList(store storage.Storage, lg *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(lg, r)
		log.Debug("listing students")

		students, err := store.GetStudents(r.Context())
		if err != nil {
			writeStoreError(w, log, err, "list students")
			return
		}

		_ = response.WriteJSON(w, http.StatusOK, ListResponse{
			Success: true,
			Total:   len(students),
			Items:   students,
		})
	}
}

// GetByID handles GET /etudiants/{id}.
func GetByID(store storage.Storage, lg *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(lg, r)

		id, ok := parseID(r)
		if !ok {
			response.NotFound(w)
			return
		}
		log.Debug("getting student", zap.Int64("id", id))

		student, err := store.GetStudentByID(r.Context(), id)
		if err != nil {
			writeStoreError(w, log, err, "get student")
			return
		}

		_ = response.WriteJSON(w, http.StatusOK, GetResponse{
			Success:    true,
			SelectedID: id,
			Item:       student,
		})
	}
}

// New handles POST /etudiants.
//
// Request body (every key optional at the JSON level, last_name enforced
// by validation):
//
//	{ "last_name": "Dupont", "first_name": "Jean", "address": "1 Rue A" }
func New(store storage.Storage, lg *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(lg, r)

		// ── 1. Decode and validate ────────────────────────────────────────
		payload, ok := decodePayload(w, r, log)
		if !ok {
			return
		}

		// ── 2. Insert ─────────────────────────────────────────────────────
		id, err := store.CreateStudent(r.Context(), payload)
		if err != nil {
			writeStoreError(w, log, err, "create student")
			return
		}
		log.Info("student created", zap.Int64("id", id))

		// ── 3. Answer with the refreshed collection ───────────────────────
		students, err := store.GetStudents(r.Context())
		if err != nil {
			writeStoreError(w, log, err, "list students after create")
			return
		}

		_ = response.WriteJSON(w, http.StatusOK, ListResponse{
			Success: true,
			Total:   len(students),
			Items:   students,
		})
	}
}

// Update handles PATCH /etudiants/{id}.
//
// Despite the verb this is a full replace: keys missing from the body are
// written as NULL.
func Update(store storage.Storage, lg *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(lg, r)

		id, ok := parseID(r)
		if !ok {
			response.NotFound(w)
			return
		}

		// ── 1. Resolve the id ─────────────────────────────────────────────
		if _, err := store.GetStudentByID(r.Context(), id); err != nil {
			writeStoreError(w, log, err, "get student for update")
			return
		}

		// ── 2. Decode and validate ────────────────────────────────────────
		payload, ok := decodePayload(w, r, log)
		if !ok {
			return
		}

		// ── 3. Replace all three columns ──────────────────────────────────
		// The row may vanish between 1 and 3; the store then reports
		// not-found and the answer is still 404.
		updated, err := store.UpdateStudentByID(r.Context(), id, payload)
		if err != nil {
			writeStoreError(w, log, err, "update student")
			return
		}
		log.Info("student updated", zap.Int64("id", id))

		_ = response.WriteJSON(w, http.StatusOK, UpdateResponse{
			Success:   true,
			UpdatedID: id,
			Item:      updated,
		})
	}
}

// Delete handles DELETE /etudiants/{id}.
func Delete(store storage.Storage, lg *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(lg, r)

		id, ok := parseID(r)
		if !ok {
			response.NotFound(w)
			return
		}

		deleted, err := store.DeleteStudentByID(r.Context(), id)
		if err != nil {
			writeStoreError(w, log, err, "delete student")
			return
		}
		log.Info("student deleted", zap.Int64("id", id))

		total, err := store.CountStudents(r.Context())
		if err != nil {
			writeStoreError(w, log, err, "count students after delete")
			return
		}

		_ = response.WriteJSON(w, http.StatusOK, DeleteResponse{
			Success: true,
			ID:      id,
			Item:    deleted,
			Total:   total,
		})
	}
}

// parseID reads the {id} path segment. The route only matches digits, so
// failure here means the value overflows int64; both cases are a 404.
func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// decodePayload reads and validates the JSON body. On failure it writes the
// 400 body and returns false.
func decodePayload(w http.ResponseWriter, r *http.Request, log *zap.Logger) (types.StudentPayload, bool) {
	var payload types.StudentPayload

	// ── 1. Decode exactly one JSON value ──────────────────────────────────
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(&payload)
	if errors.Is(err, io.EOF) {
		log.Info("rejected payload", zap.String("reason", "request body is empty"))
		response.BadRequest(w)
		return payload, false
	}
	if err != nil {
		log.Info("rejected payload", zap.Error(err))
		response.BadRequest(w)
		return payload, false
	}
	// Anything after the object, even another valid value, makes the body
	// invalid JSON.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		log.Info("rejected payload", zap.String("reason", "trailing data after JSON body"))
		response.BadRequest(w)
		return payload, false
	}

	// ── 2. Validate ───────────────────────────────────────────────────────
	// validate tags live on types.StudentPayload.
	if err := validate.Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			log.Info("rejected payload", zap.String("reason", response.DescribeValidation(verrs)))
		} else {
			log.Error("validator failure", zap.Error(err))
		}
		response.BadRequest(w)
		return payload, false
	}

	return payload, true
}

// writeStoreError maps a storage error to its fixed body: ErrNotFound is a
// 404, anything else a logged 500.
func writeStoreError(w http.ResponseWriter, log *zap.Logger, err error, op string) {
	if errors.Is(err, storage.ErrNotFound) {
		response.NotFound(w)
		return
	}
	log.Error(op,
		zap.Error(err),
		zap.Bool("constraint_violation", errors.Is(err, storage.ErrConstraintViolation)),
	)
	response.InternalServerError(w)
}

func requestLogger(lg *zap.Logger, r *http.Request) *zap.Logger {
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return lg.With(zap.String("request_id", id))
	}
	return lg
}
