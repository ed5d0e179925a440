package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"news-digest/internal/app"
	"news-digest/internal/cache"
	"news-digest/internal/httputil"
	"news-digest/internal/llm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve cached records over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		deps, err := app.BuildServe()
		if err != nil {
			return err
		}
		defer deps.Close()

		rc := cache.NewResultCache(deps.Store, deps.Log)
		if err := rc.Load(ctx); err != nil {
			deps.Log.Warn("result cache unavailable; serving empty set", "err", err)
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", deps.Config.Port),
			Handler:           newServer(deps.Log, rc),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			deps.Log.Info("digest api listening", "addr", srv.Addr, "records", rc.Len())
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			deps.Log.Info("shutting down")
			return srv.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type listQuery struct {
	Limit    int   `validate:"min=1,max=1000"`
	Offset   int   `validate:"gte=0"`
	Degraded *bool
}

type listResponse struct {
	Total   int            `json:"total"`
	Records []cache.Record `json:"records"`
}

func newServer(log *slog.Logger, rc *cache.ResultCache) http.Handler {
	r := httputil.NewRouter(log)
	r.Get("/healthz", httputil.HealthHandler(log))
	r.Get("/api/clusters", listClustersHandler(log, rc))
	r.Get("/api/clusters/{id}", getClusterHandler(log, rc))
	return r
}

func listClustersHandler(log *slog.Logger, rc *cache.ResultCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseListQuery(r)
		if err != nil {
			httputil.Fail(log, w, "invalid query", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(&q); err != nil {
			httputil.ValidationError(log, w, err)
			return
		}

		var matched []cache.Record
		for _, rec := range rc.Records() {
			if q.Degraded != nil && llm.IsUnavailable(rec.Answer) != *q.Degraded {
				continue
			}
			matched = append(matched, rec)
		}

		page := []cache.Record{}
		if q.Offset < len(matched) {
			end := min(q.Offset+q.Limit, len(matched))
			page = matched[q.Offset:end]
		}
		httputil.WriteJSON(w, http.StatusOK, listResponse{
			Total:   len(matched),
			Records: page,
		})
	}
}

func parseListQuery(r *http.Request) (listQuery, error) {
	q := listQuery{Limit: 100}
	values := r.URL.Query()
	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, fmt.Errorf("limit: %w", err)
		}
		q.Limit = n
	}
	if v := values.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, fmt.Errorf("offset: %w", err)
		}
		q.Offset = n
	}
	if v := values.Get("degraded"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, fmt.Errorf("degraded: %w", err)
		}
		q.Degraded = &b
	}
	return q, nil
}

func getClusterHandler(log *slog.Logger, rc *cache.ResultCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httputil.Fail(log, w, "invalid cluster id", err, http.StatusBadRequest)
			return
		}
		rec, err := rc.Get(id)
		if errors.Is(err, cache.ErrNotFound) {
			http.Error(w, "cluster not found", http.StatusNotFound)
			return
		}
		if err != nil {
			httputil.Fail(log, w, "lookup failed", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, rec)
	}
}
