package publish

import (
	"bytes"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gorilla/mux"
	"lukechampine.com/blake3"

	"github.com/immune-gmbh/firmware-publisher/pkg/releasestore"
)

// NewRouter routes the endpoint at "/" and "/index.php" and the download of
// the published firmware image at "/firmware.bin".
func NewRouter(endpoint *Endpoint) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/", endpoint)
	router.Handle("/index.php", endpoint)
	router.HandleFunc("/"+releasestore.FirmwareFileName, endpoint.ServeFirmware).
		Methods(http.MethodGet, http.MethodHead)

	// only the firmware route is restricted by methods
	router.MethodNotAllowedHandler = http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		response.Header().Set("Allow", "GET, HEAD")
		endpoint.replyFailure(response, request, newFailure(KindMethodNotAllowed, MessageMethodNotAllowed))
	})
	return router
}

// FirmwareETag returns the entity tag of a firmware image.
func FirmwareETag(firmware []byte) string {
	digest := blake3.Sum256(firmware)
	return `"` + hex.EncodeToString(digest[:]) + `"`
}

// ServeFirmware replies the published firmware image.
func (e *Endpoint) ServeFirmware(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()

	firmware, err := e.Store.ReadFirmware(ctx)
	switch {
	case errors.As(err, &releasestore.ErrNotFound{}):
		replyJSON(ctx, response, http.StatusNotFound, Response{Error: "firmware is not published"})
		return
	case err != nil:
		logger.FromCtx(ctx).Errorf("unable to read the firmware: %v", err)
		errmon.ObserveErrorCtx(ctx, err)
		replyJSON(ctx, response, http.StatusInternalServerError, Response{Error: "failed to read firmware.bin"})
		return
	}

	response.Header().Set("Content-Type", "application/octet-stream")
	response.Header().Set("ETag", FirmwareETag(firmware))
	http.ServeContent(response, request, releasestore.FirmwareFileName, time.Time{}, bytes.NewReader(firmware))
}
