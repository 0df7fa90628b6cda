package publish

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// Response is the JSON body replied to a POST.
type Response struct {
	OK      bool             `json:"ok"`
	Error   string           `json:"error,omitempty"`
	Code    *UploadErrorCode `json:"code,omitempty"`
	Version string           `json:"version,omitempty"`
}

func replyJSON(ctx context.Context, w http.ResponseWriter, statusCode int, resp Response) {
	b, err := json.Marshal(resp)
	if err != nil {
		logger.FromCtx(ctx).Errorf("unable to serialize the response %#+v: %v", resp, err)
		statusCode = http.StatusInternalServerError
		b = []byte(`{"ok":false}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(b); err != nil {
		logger.FromCtx(ctx).Debugf("unable to write the response: %v", err)
	}
}

func replyText(ctx context.Context, w http.ResponseWriter, statusCode int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(text)); err != nil {
		logger.FromCtx(ctx).Debugf("unable to write the response: %v", err)
	}
}
