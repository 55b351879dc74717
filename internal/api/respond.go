package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/safar/koloa-ledger/internal/database"
	"github.com/safar/koloa-ledger/internal/ledger"
	"github.com/safar/koloa-ledger/internal/metrics"
	"github.com/safar/koloa-ledger/internal/store"
)

const maxBodyBytes = 1 << 20

type handler struct {
	backend  Backend
	logger   *slog.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate
}

type errorResponse struct {
	Error string `json:"error"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	// Decimals validate as floats so gte/lte tags apply to money fields.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors to 400/404 and hides everything else
// behind a logged 500.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, ledger.ErrConflict):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case database.IsCheckViolation(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request violates a data constraint"})
	case database.IsOutOfRange(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "quantity out of range"})
	default:
		h.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", chimw.GetReqID(r.Context())),
			slog.Any("error", err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// decode reads a JSON body into dst and validates it. An empty body is
// accepted when optional is set.
func (h *handler) decode(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		return ledger.Validationf("invalid request body")
	}

	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return ledger.Validationf("%s", formatValidation(fieldErrs))
		}
		return ledger.Validationf("invalid request body")
	}
	return nil
}

func formatValidation(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, fmt.Sprintf("%s %s", fieldPath(e), describeTag(e)))
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}

// fieldPath drops the request struct name, leaving e.g. "items[0].inventoryItemId".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describeTag(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, ledger.Validationf("invalid %s", name)
	}
	return id, nil
}

// queryInt returns def when the parameter is absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ledger.Validationf("invalid %s", name)
	}
	return n, nil
}

func (h *handler) pageParams(r *http.Request) (int, int, error) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	if page < 1 {
		page = 1
	}
	size, err := queryInt(r, "pageSize", 0)
	if err != nil {
		return 0, 0, err
	}
	return page, store.ClampPageSize(size), nil
}
