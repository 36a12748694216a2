package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/recordset/api/apitablev1"
	"github.com/fulldump/recordset/database"
	"github.com/fulldump/recordset/schema"
	"github.com/fulldump/recordset/service"
)

type PrettyError struct {
	Message     string `json:"message"`
	Description string `json:"description"`
}

func (p PrettyError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"error": struct {
			Message     string `json:"message"`
			Description string `json:"description"`
		}{
			p.Message,
			p.Description,
		},
	})
}

func (p PrettyError) MarshalTo(w io.Writer) error {
	return json.NewEncoder(w).Encode(p)
}

var ErrUnavailable = errors.New("temporary unavailable")

func InterceptorUnavailable(db *database.Database) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {

			status := db.GetStatus()
			if status != database.StatusOperating {
				box.SetError(ctx, fmt.Errorf("%w: %s", ErrUnavailable, status))
				return
			}
			next(ctx)
		}
	}
}

// describe maps an error to its http status and a human description
func describe(ctx context.Context, err error) (int, string) {

	var syntaxError *json.SyntaxError

	switch {
	case errors.Is(err, box.ErrResourceNotFound):
		return http.StatusNotFound, fmt.Sprintf("resource '%s' not found", box.GetRequest(ctx).URL.String())
	case errors.Is(err, box.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, fmt.Sprintf("method '%s' not allowed", box.GetRequest(ctx).Method)
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "try again later"
	case errors.Is(err, service.ErrorTableNotFound):
		return http.StatusNotFound, fmt.Sprintf("table '%s' not found", box.GetUrlParameter(ctx, "tableName"))
	case errors.Is(err, service.ErrorTableAlreadyExists), errors.Is(err, service.ErrorConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, schema.ErrInvalidSchema):
		return http.StatusBadRequest, "invalid schema"
	case errors.Is(err, apitablev1.ErrBadRequest), errors.As(err, &syntaxError):
		return http.StatusBadRequest, "Malformed JSON"
	}

	return http.StatusInternalServerError, "Unexpected error"
}

func PrettyErrorInterceptor(next box.H) box.H {
	return func(ctx context.Context) {

		next(ctx)

		err := box.GetError(ctx)
		if err == nil {
			return
		}

		status, description := describe(ctx, err)

		w := box.GetResponse(ctx)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		PrettyError{
			Message:     err.Error(),
			Description: description,
		}.MarshalTo(w)
	}
}
