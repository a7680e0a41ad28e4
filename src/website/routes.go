package website

import (
	"net/http"

	"github.com/quillpress/quill/src/hmnurl"
	"github.com/quillpress/quill/src/perf"
)

const publicDir = "public"

var publicFS = http.StripPrefix(hmnurl.StaticPath, http.FileServer(http.Dir(publicDir)))

func NewWebsiteRoutes(s *Services, perfCollector *perf.PerfCollector) http.Handler {
	router := &Router{}
	routes := RouteBuilder{
		Router: router,
		Middlewares: []Middleware{
			trackRequestPerf(perfCollector),
			logContextErrorsMiddleware,
			panicCatcherMiddleware,
		},
	}

	routes.GET(hmnurl.RegexPublic, func(c *RequestContext) ResponseData {
		var res ResponseData
		publicFS.ServeHTTP(&res, c.Req)
		return res
	})

	routes.GET(hmnurl.RegexHomepage, Index(s))
	routes.GET(hmnurl.RegexPost, PostPage(s))
	routes.POST(hmnurl.RegexPostComment, PostComment(s))
	routes.GET(hmnurl.RegexPostComment, PostCommentRedirect)

	routes.POST(hmnurl.RegexAPICreateComment, APICreateComment(s))

	secretRoutes := routes.WithMiddleware(requireSecret(s.RevalidateSecret))
	secretRoutes.POST(hmnurl.RegexAPIRevalidate, APIRevalidate(s))

	routes.AnyMethod(hmnurl.RegexCatchAll, FourOhFour)

	return router
}
