package feed

import (
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/nlstn/go-odata-client/internal/odataerr"
)

// maxPlainMessage bounds the message taken from a non-JSON error body.
const maxPlainMessage = 512

// ParseError builds the error for a failed response from its status and body.
// It understands the v4 "error" object and the v3 "odata.error" object whose
// message is a {lang, value} pair.
func ParseError(statusCode int, body []byte) *odataerr.ODataError {
	e := &odataerr.ODataError{
		StatusCode: statusCode,
		Err:        odataerr.KindForStatus(statusCode),
	}

	if !gjson.ValidBytes(body) {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxPlainMessage {
			msg = msg[:maxPlainMessage]
		}
		if msg == "" {
			msg = http.StatusText(statusCode)
		}
		e.Message = msg
		return e
	}

	fields := objectFields(gjson.ParseBytes(body))
	errObj, ok := fields["error"]
	if !ok {
		errObj, ok = fields["odata.error"]
	}
	if !ok || !errObj.IsObject() {
		e.Message = http.StatusText(statusCode)
		return e
	}

	e.Code = errObj.Get("code").String()
	e.Message = messageText(errObj.Get("message"))
	e.Target = errObj.Get("target").String()
	for _, d := range errObj.Get("details").Array() {
		e.Details = append(e.Details, odataerr.ErrorDetail{
			Code:    d.Get("code").String(),
			Target:  d.Get("target").String(),
			Message: messageText(d.Get("message")),
		})
	}
	if e.Message == "" {
		e.Message = http.StatusText(statusCode)
	}
	return e
}

func messageText(msg gjson.Result) string {
	if msg.IsObject() {
		return msg.Get("value").String()
	}
	return msg.String()
}
