package server

import (
	"videoanalyzer/internal/conf"
	"videoanalyzer/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// NewHTTPServer new an HTTP server. A zero timeout lets analyses run until
// the client disconnects.
func NewHTTPServer(c *conf.Server, analysis *service.AnalysisService, logger log.Logger) *khttp.Server {
	var opts = []khttp.ServerOption{
		khttp.Middleware(
			recovery.Recovery(),
			logging.Server(logger),
		),
		khttp.Timeout(0),
	}
	if c.HTTP != nil {
		if c.HTTP.Addr != "" {
			opts = append(opts, khttp.Address(c.HTTP.Addr))
		}
		opts = append(opts, khttp.Timeout(c.HTTP.Timeout()))
	}
	srv := khttp.NewServer(opts...)
	service.RegisterAnalysisHTTPServer(srv, analysis)
	return srv
}
