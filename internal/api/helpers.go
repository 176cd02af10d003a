package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	domainerrors "github.com/jamsync/jam-server/internal/errors"
)

// maxBodySize bounds bootstrap request bodies.
const maxBodySize = 64 << 10

// decodeJSON reads a JSON request body into dst. An empty body leaves dst unchanged.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domainerrors.Validation(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}
