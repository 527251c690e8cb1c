package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"cortexdb/internal/domain"
)

// errorResponse is the JSON body returned for any failed request.
type errorResponse struct {
	Code    domain.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

var codeStatus = map[domain.ErrorCode]int{
	domain.CodeCollectionNotFound: http.StatusNotFound,
	domain.CodeDatabaseNotFound:   http.StatusNotFound,
	domain.CodeRecordNotFound:     http.StatusNotFound,
	domain.CodeAPIKeyNotFound:     http.StatusNotFound,
	domain.CodeProviderNotFound:   http.StatusNotFound,
	domain.CodeSchemaInvalid:      http.StatusBadRequest,
	domain.CodeFieldInvalid:       http.StatusBadRequest,
	domain.CodeValueInvalid:       http.StatusBadRequest,
	domain.CodeFileRequired:       http.StatusBadRequest,
	domain.CodeNoVectorCollection: http.StatusBadRequest,
	domain.CodeDatabaseDuplicate:   http.StatusConflict,
	domain.CodeCollectionDuplicate: http.StatusConflict,
	domain.CodeProviderDuplicate:   http.StatusConflict,
	domain.CodeUniqueViolation:     http.StatusConflict,
	domain.CodeAPIKeyInvalid:  http.StatusUnauthorized,
	domain.CodeAPIKeyDisabled: http.StatusUnauthorized,
	domain.CodeAPIKeyExpired:  http.StatusUnauthorized,
	domain.CodeAPIKeyMissing:  http.StatusUnauthorized,
	domain.CodeAdminRequired:      http.StatusForbidden,
	domain.CodeDatabaseScope:      http.StatusForbidden,
	domain.CodeReadonlyViolation:  http.StatusForbidden,
	domain.CodeRelationalStore: http.StatusBadGateway,
	domain.CodeVectorStore:     http.StatusBadGateway,
	domain.CodeObjectStore:     http.StatusBadGateway,
	domain.CodeEmbeddingFailed: http.StatusBadGateway,
	domain.CodePresignFailed:   http.StatusBadGateway,
	domain.CodeMigrationFailed: http.StatusInternalServerError,
}

// writeError maps a domain error to an HTTP status and writes a JSON body.
func writeError(w http.ResponseWriter, err error) {
	code := domain.ErrorCodeOf(err)
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	var de *domain.DomainError
	msg := err.Error()
	if errors.As(err, &de) {
		msg = de.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Code: code, Message: msg})
}

// writeJSON writes v as a JSON body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes the request body into v, returning a validation error
// on malformed JSON.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.NewDomainError("gateway.decode", domain.ErrSchemaInvalid, err.Error())
	}
	return nil
}
