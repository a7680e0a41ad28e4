package website

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"syscall"

	"github.com/quillpress/quill/src/logging"
	"github.com/quillpress/quill/src/perf"
	"github.com/quillpress/quill/src/templates"
)

// ResponseData buffers a whole response so handlers and middlewares can keep
// changing status and headers until doRequest flushes it.
type ResponseData struct {
	StatusCode int
	Body       *bytes.Buffer
	Errors     []error

	header http.Header
}

var _ http.ResponseWriter = &ResponseData{}

func (rd *ResponseData) Header() http.Header {
	if rd.header == nil {
		rd.header = make(http.Header)
	}

	return rd.header
}

func (rd *ResponseData) Write(p []byte) (n int, err error) {
	if rd.Body == nil {
		rd.Body = new(bytes.Buffer)
	}

	return rd.Body.Write(p)
}

func (rd *ResponseData) WriteHeader(status int) {
	rd.StatusCode = status
}

func (rd *ResponseData) WriteTemplate(name string, data interface{}, rp *perf.RequestPerf) error {
	if rp != nil {
		b := rp.StartBlock("TEMPLATE", name)
		defer b.End()
	}
	return templates.GetTemplate(name).Execute(rd, data)
}

func (rd *ResponseData) MustWriteTemplate(name string, data interface{}, rp *perf.RequestPerf) {
	err := rd.WriteTemplate(name, data, rp)
	if err != nil {
		panic(err)
	}
}

func (rd *ResponseData) WriteJson(data any, rp *perf.RequestPerf) {
	if rp != nil {
		b := rp.StartBlock("JSON", "Encoding response")
		defer b.End()
	}
	dataJson, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	rd.Header().Set("Content-Type", "application/json")
	rd.Write(dataJson)
}

// doRequest runs h and flushes its buffered response. Content-Type and
// Content-Length are always set, so HEAD answers carry them too.
func doRequest(rw http.ResponseWriter, c *RequestContext, h Handler) {
	defer func() {
		// Last resort. Error pages belong in panicCatcherMiddleware.
		if recovered := recover(); recovered != nil {
			rw.WriteHeader(http.StatusInternalServerError)
			logging.LogPanicValue(c.Logger, recovered, "request panicked and was not handled")
			rw.Write([]byte("There was a problem handling your request.\n"))
		}
	}()

	res := h(c)
	if res.StatusCode == 0 {
		res.StatusCode = http.StatusOK
	}

	var body io.Reader
	if res.Body != nil {
		if res.Header().Get("Content-Length") == "" {
			res.Header().Set("Content-Length", strconv.Itoa(res.Body.Len()))
		}
		if res.Header().Get("Content-Type") == "" {
			sniffed := res.Body.Next(512)
			res.Header().Set("Content-Type", http.DetectContentType(sniffed))
			body = io.MultiReader(bytes.NewReader(sniffed), res.Body)
		} else {
			body = res.Body
		}
	}

	for name, vals := range res.Header() {
		for _, val := range vals {
			rw.Header().Add(name, val)
		}
	}
	rw.WriteHeader(res.StatusCode)

	if body == nil || c.Req.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(rw, body); err != nil {
		if errors.Is(err, syscall.EPIPE) {
			c.Logger.Debug().Msg("client hung up before the response was written")
		} else {
			c.Logger.Error().Err(err).Msg("failed to write response body")
		}
	}
}
