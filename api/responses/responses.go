package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/angelmondragon/aurelia-backend/pkg/errors"
	"github.com/angelmondragon/aurelia-backend/pkg/logger"
)

// WebhookProcessingFailed is the public body for any failure after classification.
const WebhookProcessingFailed = "Webhook processing failed"

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// WebhookError is the flat body gateways receive, e.g. {"error":"Invalid signature"}.
type WebhookError struct {
	Error string `json:"error"`
}

type WebhookAck struct {
	Received bool `json:"received"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

// WriteAck acknowledges a webhook delivery so the gateway stops retrying.
func WriteAck(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, WebhookAck{Received: true})
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeForbidden,
		pkgerrors.CodeUnauthorized,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeMethodNotAllowed,
		pkgerrors.CodeConflict:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	payload := ErrorEnvelope{
		Error: APIError{
			Code:    string(typed.Code()),
			Message: msg,
		},
	}

	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	logError(ctx, logg, "request.error", err)
	writeJSON(w, meta.HTTPStatus, payload)
}

// WriteWebhookError writes the flat webhook error body. Gate and parse
// failures keep their own status and message; every other failure becomes a
// 500 "Webhook processing failed" so the gateway redelivers.
func WriteWebhookError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	status := http.StatusInternalServerError
	msg := WebhookProcessingFailed
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeValidation,
			pkgerrors.CodeUnauthorized,
			pkgerrors.CodeMethodNotAllowed,
			pkgerrors.CodeConfiguration:
			status = pkgerrors.MetadataFor(typed.Code()).HTTPStatus
			if m := typed.Message(); m != "" {
				msg = m
			}
		}
	}

	if status >= http.StatusInternalServerError {
		logError(ctx, logg, "webhook.error", err)
	} else if logg != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "webhook.rejected")
	}
	writeJSON(w, status, WebhookError{Error: msg})
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil {
		return
	}
	dump := pkgerrors.Dump(err)

	fields := map[string]any{
		"error":         dump.TopMessage,
		"error_code":    dump.Code,
		"error_chain":   dump.Chain,
		"retryable":     dump.Retryable,
		"pg_code":       dump.PGCode,
		"pg_detail":     dump.PGDetail,
		"pg_message":    dump.PGMessage,
		"pg_table":      dump.PGTable,
		"pg_column":     dump.PGColumn,
		"pg_constraint": dump.PGConstraint,
	}

	if typed := pkgerrors.As(err); typed != nil {
		if dm, ok := typed.Details().(map[string]any); ok {
			if step, ok := dm["step"]; ok {
				fields["step"] = step
			}
		}
	}

	ctx = logg.WithFields(ctx, fields)
	logg.Error(ctx, msg, err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
