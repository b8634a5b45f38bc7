// Package logger builds slog loggers for the quota service.
//
// New returns a *slog.Logger configured through functional options: output format,
// level, static attributes and context extractors. NewFromConfig does the same from
// the env-loaded Config, applying per-environment defaults (text at debug level in
// development, JSON at info level elsewhere).
//
// Attribute helpers such as TenantID, Action, PlanID and Period keep key names
// consistent across packages. WithTenant stores the tenant in a context so that
// every record logged with that context carries tenant_id.
//
//	log, err := logger.NewFromConfig(cfg.Log)
//	if err != nil {
//		return err
//	}
//	ctx = logger.WithTenant(ctx, tenantID)
//	log.WarnContext(ctx, "usage store unavailable", logger.Action("forms"), logger.Error(err))
package logger
