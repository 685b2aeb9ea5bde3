// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/investpro/core"
	"github.com/relabs-tech/investpro/core/logger"
	"github.com/relabs-tech/investpro/core/schema"
)

// maxBodySize limits request bodies
const maxBodySize = 1 << 20

// writeJSON writes body as JSON with the given status
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		logger.Default().WithError(err).Errorln("Error 4001: cannot marshal response")
		http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(jsonData)
}

// writeError maps err to its status code and writes the public message. Server
// side failures are logged with their detail, which never reaches the client.
func writeError(w http.ResponseWriter, r *http.Request, code string, err error) {
	status := core.StatusCode(err)
	rlog := logger.FromContext(r.Context())
	switch {
	case status >= http.StatusInternalServerError:
		rlog.WithError(err).Errorf("Error %s: %s %s", code, r.Method, r.URL.Path)
	default:
		rlog.WithError(err).Debugf("%s %s rejected with %d", r.Method, r.URL.Path, status)
	}
	writeJSON(w, status, map[string]string{"error": core.PublicMessage(err)})
}

// decodeBody reads the request body, validates it against schemaID and decodes
// it into a document. A missing or empty body is an empty document.
func (b *Backend) decodeBody(r *http.Request, schemaID string) (core.Document, error) {
	body := r.Body
	if body == nil {
		body = http.NoBody
	}
	data, err := io.ReadAll(io.LimitReader(body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidRequestBody, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		data = []byte("{}")
	}
	if err = b.validator.ValidateBytes(data, schemaID); err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidRequestBody, verr)
		}
		return nil, err
	}
	doc := core.Document{}
	if err = json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidRequestBody, err)
	}
	return doc, nil
}

// stringField returns the string value of key, or "" if absent or null
func stringField(doc core.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}

func bytesToEtag(b []byte) string {
	return fmt.Sprintf("\"%x\"", md5.Sum(b))
}

func ifNoneMatchFound(ifNoneMatch, etag string) bool {
	ifNoneMatch = strings.Trim(ifNoneMatch, " ")
	if len(ifNoneMatch) == 0 {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	for _, s := range strings.Split(ifNoneMatch, ",") {
		s = strings.Trim(s, " \"")
		t := strings.Trim(etag, " \"")
		if s == t {
			return true
		}
	}
	return false
}
