package apiclient

import (
	"encoding/json"
	"io"
	"net/http"

	"workshop_backend/platform/apperr"
)

type errorBody struct {
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details,omitempty"`
}

// decodeError turns a non-2xx response into an *apperr.Error. The wire code
// decides the kind when present; any 5xx is transient.
func decodeError(resp *http.Response) *apperr.Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body errorBody
	_ = json.Unmarshal(raw, &body)

	kind, ok := apperr.KindFromCode(body.Code)
	if !ok || kind == apperr.KindUnknown {
		kind = kindFromStatus(resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		kind = apperr.KindTransient
	}

	message := body.Error
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	err := apperr.New(kind, message)
	if details := decodeDetails(kind, body.Details); details != nil {
		err = err.WithDetails(details)
	}
	return err
}

func kindFromStatus(status int) apperr.Kind {
	switch status {
	case http.StatusBadRequest:
		return apperr.KindValidation
	case http.StatusUnauthorized:
		return apperr.KindUnauthorized
	case http.StatusForbidden:
		return apperr.KindForbidden
	case http.StatusNotFound:
		return apperr.KindNotFound
	case http.StatusConflict:
		return apperr.KindConflict
	case http.StatusUnprocessableEntity:
		return apperr.KindInvalidTransition
	default:
		return apperr.KindInternal
	}
}

func decodeDetails(kind apperr.Kind, raw json.RawMessage) interface{} {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	switch kind {
	case apperr.KindValidation:
		var fields []apperr.FieldError
		if json.Unmarshal(raw, &fields) == nil {
			return fields
		}
	case apperr.KindIncompleteChecklist:
		var missing apperr.MissingItems
		if json.Unmarshal(raw, &missing) == nil {
			return missing
		}
	case apperr.KindInvalidTransition:
		var transition apperr.TransitionDetail
		if json.Unmarshal(raw, &transition) == nil {
			return transition
		}
	case apperr.KindConflict:
		var detail apperr.ConflictDetail
		if json.Unmarshal(raw, &detail) == nil && isConflictDetail(detail) {
			return detail
		}
	}

	var generic interface{}
	if json.Unmarshal(raw, &generic) == nil {
		return generic
	}
	return nil
}

func isConflictDetail(d apperr.ConflictDetail) bool {
	return d.TechnicianID != "" || d.CenterID != "" || len(d.ConflictingAssignmentIDs) > 0 || d.CurrentVersion != nil
}
