package controllers

import (
	"context"
	"net/http"

	"github.com/pharmadata/pharmadata-backend/api/responses"
	"github.com/pharmadata/pharmadata-backend/pkg/config"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PharmaData-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every backing service. Nil pingers are skipped so the
// archiver binary can reuse the check with a smaller dependency set.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP, gcsP, bigqueryP pinger) http.HandlerFunc {
	deps := []struct {
		name string
		dep  pinger
	}{
		{"database", dbP},
		{"redis", redisP},
		{"gcs", gcsP},
		{"bigquery", bigqueryP},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PharmaData-Env", cfg.App.Env)
		for _, entry := range deps {
			if entry.dep == nil {
				continue
			}
			if err := entry.dep.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, entry.name+" unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
