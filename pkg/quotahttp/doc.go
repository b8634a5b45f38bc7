// Package quotahttp exposes a quota.Engine as a JSON API.
//
// Routes:
//
//	GET  /plans                      plan catalog
//	GET  /plans/recommended          lowest plan fitting current usage
//	GET  /subscription               current subscription (provisioned on first access)
//	PUT  /subscription/plan          {"planId": "pro"}; downgrades must fit current usage
//	GET  /quota[?actions=forms,...]  quota status of every (or the listed) action
//	GET  /quota/{action}             quota status of one action
//	POST /quota/{action}/check       {"amount": n}; read-only decision, always 200
//	POST /quota/{action}/consume     {"amount": n}; admit and record, 402 when denied
//
// Every response uses the Envelope shape. The tenant is resolved by an Identity,
// by default the X-Tenant-ID header; requests without one get 401.
//
//	r := chi.NewRouter()
//	r.Mount("/v1", quotahttp.NewRouter(engine, quotahttp.WithLogger(log)))
package quotahttp
