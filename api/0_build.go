package api

import (
	"context"
	"net/http"

	"github.com/fulldump/box"
	"github.com/fulldump/box/boxopenapi"

	"github.com/fulldump/recordset/api/apitablev1"
	"github.com/fulldump/recordset/service"
)

func Build(s service.Servicer, version string) *box.B {

	b := box.NewBox()

	v1 := b.Resource("/v1")
	v1.WithInterceptors(
		box.SetResponseHeader("Content-Type", "application/json"),
	)

	apitablev1.BuildV1Table(v1, s).
		WithInterceptors(
			injectServicer(s),
		)

	b.Resource("/release").
		WithActions(box.Get(func() string {
			return version
		}))

	spec := boxopenapi.Spec(b)
	spec.Info.Title = "recordset"
	spec.Info.Description = "Tables of typed records reconciled through recordsets."
	b.Handle("GET", "/openapi.json", func(r *http.Request) any {
		spec.Servers = []boxopenapi.Server{
			{
				Url: "http://" + r.Host,
			},
		}
		return spec
	})

	return b
}

func injectServicer(s service.Servicer) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {
			next(apitablev1.SetServicer(ctx, s))
		}
	}
}
