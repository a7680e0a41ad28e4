package website

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quillpress/quill/src/hmnurl"
	"github.com/quillpress/quill/src/logging"
	"github.com/quillpress/quill/src/perf"
	"github.com/quillpress/quill/src/templates"
	"github.com/rs/zerolog"
)

type Router struct {
	Routes []Route
}

type Route struct {
	Method  string
	Regexes []*regexp.Regexp
	Handler Handler
}

func (r *Route) String() string {
	var routeStrings []string
	for _, regex := range r.Regexes {
		routeStrings = append(routeStrings, regex.String())
	}
	return fmt.Sprintf("%s %v", r.Method, routeStrings)
}

type RouteBuilder struct {
	Router      *Router
	Prefixes    []*regexp.Regexp
	Middlewares []Middleware
}

type Handler func(c *RequestContext) ResponseData
type Middleware func(h Handler) Handler

func applyMiddlewares(h Handler, ms []Middleware) Handler {
	result := h
	for i := len(ms) - 1; i >= 0; i-- {
		result = ms[i](result)
	}
	return result
}

func (rb *RouteBuilder) Handle(methods []string, regex *regexp.Regexp, h Handler) {
	if !strings.HasPrefix(regex.String(), "^") {
		panic(fmt.Sprintf("route regex %q is not anchored with ^", regex.String()))
	}

	h = applyMiddlewares(h, rb.Middlewares)
	for _, method := range methods {
		rb.Router.Routes = append(rb.Router.Routes, Route{
			Method:  method,
			Regexes: append(rb.Prefixes, regex),
			Handler: h,
		})
	}
}

func (rb *RouteBuilder) AnyMethod(regex *regexp.Regexp, h Handler) {
	rb.Handle([]string{""}, regex, h)
}

func (rb *RouteBuilder) GET(regex *regexp.Regexp, h Handler) {
	rb.Handle([]string{http.MethodGet}, regex, h)
}

func (rb *RouteBuilder) POST(regex *regexp.Regexp, h Handler) {
	rb.Handle([]string{http.MethodPost}, regex, h)
}

func (rb *RouteBuilder) WithMiddleware(ms ...Middleware) RouteBuilder {
	newRb := *rb
	newRb.Middlewares = append(rb.Middlewares, ms...)

	return newRb
}

// match runs the route's regexes in order, each consuming a prefix of the
// path. Named groups become path params.
func (r *Route) match(path string) (map[string]string, bool) {
	rest := strings.TrimSuffix(path, "/")
	if rest == "" {
		rest = "/"
	}

	params := map[string]string{}
	for _, regex := range r.Regexes {
		groups := regex.FindStringSubmatch(rest)
		if groups == nil {
			return nil, false
		}
		for i, name := range regex.SubexpNames() {
			if name != "" {
				params[name] = groups[i]
			}
		}
		rest = strings.TrimPrefix(rest, strings.TrimSuffix(groups[0], "/"))
		if rest == "" {
			rest = "/"
		}
	}
	return params, true
}

func (r *Router) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	method := req.Method
	if method == http.MethodHead {
		method = http.MethodGet
	}

	for i := range r.Routes {
		route := &r.Routes[i]
		if route.Method != "" && route.Method != method {
			continue
		}
		params, ok := route.match(req.URL.Path)
		if !ok {
			continue
		}

		logger := logging.With().Str("requestId", uuid.NewString()).Logger()
		c := &RequestContext{
			Route:      route.String(),
			Logger:     &logger,
			Req:        req,
			Res:        rw,
			PathParams: params,

			ctx: logging.AttachLoggerToContext(&logger, req.Context()),
		}
		doRequest(rw, c, route.Handler)
		return
	}

	// NewWebsiteRoutes always ends with a catch-all, so this means a test
	// router was built without one.
	panic(fmt.Sprintf("no route matched %s %s", req.Method, req.URL.Path))
}

type RequestContext struct {
	Route      string
	Logger     *zerolog.Logger
	Req        *http.Request
	PathParams map[string]string

	// Only for code that needs the raw writer. Handlers return ResponseData.
	Res http.ResponseWriter

	Perf          *perf.RequestPerf
	PerfCollector *perf.PerfCollector

	ctx context.Context
}

var _ context.Context = &RequestContext{}

func (c *RequestContext) Deadline() (time.Time, bool) {
	return c.ctx.Deadline()
}

func (c *RequestContext) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *RequestContext) Err() error {
	return c.ctx.Err()
}

func (c *RequestContext) Value(key any) any {
	switch key {
	case perf.PerfContextKey:
		return c.Perf
	default:
		return c.ctx.Value(key)
	}
}

func (c *RequestContext) FullUrl() string {
	var scheme string

	if proto, hasProto := c.Req.Header["X-Forwarded-Proto"]; hasProto {
		scheme = fmt.Sprintf("%s://", proto[0])
	}

	if scheme == "" {
		if c.Req.TLS != nil {
			scheme = "https://"
		} else {
			scheme = "http://"
		}
	}

	return scheme + c.Req.Host + c.Req.URL.String()
}

func (c *RequestContext) GetFormValues() (url.Values, error) {
	err := c.Req.ParseForm()
	if err != nil {
		return nil, err
	}

	return c.Req.PostForm, nil
}

// Redirect only accepts site paths and absolute URLs built by hmnurl.
func (c *RequestContext) Redirect(dest string, code int) ResponseData {
	var res ResponseData

	destUrl, err := url.Parse(dest)
	if err != nil || (destUrl.Host == "" && !strings.HasPrefix(destUrl.Path, "/")) {
		c.Logger.Warn().Err(err).Str("dest", dest).Msg("Refusing to redirect to a relative or broken URL")
		dest = hmnurl.BuildHomepage()
	} else {
		dest = destUrl.String()
	}

	res.Header().Set("Location", dest)
	res.StatusCode = code
	if c.Req.Method == http.MethodGet {
		res.Header().Set("Content-Type", "text/html; charset=utf-8")
		res.Write([]byte("<a href=\"" + html.EscapeString(dest) + "\">" + http.StatusText(code) + "</a>.\n"))
	}

	return res
}

func (c *RequestContext) ErrorResponse(status int, errs ...error) ResponseData {
	defer func() {
		if r := recover(); r != nil {
			logContextErrors(c, errs...)
			panic(r)
		}
	}()

	res := ResponseData{
		StatusCode: status,
		Errors:     errs,
	}
	res.MustWriteTemplate("error.html", templates.ErrorPage{
		BaseData: getBaseData("Error", ""),
		Status:   status,
		Messages: safeMessages(errs),
	}, c.Perf)
	return res
}

// JsonResponse is the shape every API endpoint answers with. Errors are only
// logged, never sent.
func (c *RequestContext) JsonResponse(status int, data any, errs ...error) ResponseData {
	res := ResponseData{
		StatusCode: status,
		Errors:     errs,
	}
	res.WriteJson(data, c.Perf)
	return res
}
