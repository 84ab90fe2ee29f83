package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"regexp"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zephyrtronium/tilde/command"
	"github.com/zephyrtronium/tilde/message"
)

func (robo *Robot) api(ctx context.Context, listen string, metrics []prometheus.Collector) error {
	l, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("couldn't start API server: %w", err)
	}
	srv := http.Server{
		Handler:     robo.mux(metrics),
		ReadTimeout: 5 * time.Second,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}
	go func() {
		slog.InfoContext(ctx, "HTTP API server", slog.Any("addr", l.Addr()))
		err := srv.Serve(l)
		if err == http.ErrServerClosed {
			return
		}
		slog.ErrorContext(ctx, "HTTP API server closed", slog.Any("err", err))
	}()
	<-ctx.Done()
	// The context is now done, so it is obviously the wrong choice for
	// managing the shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (robo *Robot) mux(metrics []prometheus.Collector) *http.ServeMux {
	mux := http.NewServeMux()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(
		collectors.WithGoCollectorMemStatsMetricsDisabled(),
		collectors.WithGoCollectorRuntimeMetrics(
			collectors.GoRuntimeMetricsRule{
				Matcher: regexp.MustCompile(`^(/gc/gogc:percent|/gc/gomemlimit:bytes|/gc/heap/allocs:bytes|/gc/heap/goal:bytes|/memory/classes/total:bytes|/sched/gomaxprocs:threads|/sched/goroutines:goroutines|/sched/latencies:seconds)$`),
			},
		),
	))
	reg.MustRegister(metrics...)
	opts := promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, opts))
	mux.HandleFunc("GET /debug/pprof/", pprof.Index)
	mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("GET /api/commands", robo.apiCommands)
	mux.HandleFunc("POST /api/eval", robo.apiEval)
	return mux
}

func jsonerror(w http.ResponseWriter, status int, msg string) {
	v := struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}{
		Error:  msg,
		Status: status,
	}
	b, err := json.Marshal(&v)
	if err != nil {
		panic(err)
	}
	w.WriteHeader(status)
	w.Write(b)
}

type apiCommand struct {
	Trigger string        `json:"trigger"`
	Group   string        `json:"group"`
	Level   command.Level `json:"level"`
	Raw     bool          `json:"raw,omitzero"`
	Server  bool          `json:"server,omitzero"`
	Help    string        `json:"help,omitzero"`
}

func (robo *Robot) apiCommands(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slog.With(slog.String("api", "commands"), slog.Any("trace", uuid.New()))
	log.InfoContext(ctx, "handle", slog.String("route", r.Pattern), slog.String("remote", r.RemoteAddr))
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/json")
	u := struct {
		Data   []apiCommand `json:"data"`
		Status int          `json:"status"`
	}{
		Data:   []apiCommand{},
		Status: http.StatusOK,
	}
	for c := range robo.bot.Registry().All() {
		u.Data = append(u.Data, apiCommand{
			Trigger: c.Trigger,
			Group:   c.Group.ID(),
			Level:   c.Permission,
			Raw:     c.Raw,
			Server:  c.Server,
			Help:    c.Help,
		})
	}
	b, err := json.Marshal(&u)
	if err != nil {
		panic(err)
	}
	if _, err := w.Write(b); err != nil {
		log.ErrorContext(ctx, "write response failed", slog.Any("err", err))
	}
}

type apiEvalRequest struct {
	Server string `json:"server"`
	User   string `json:"user"`
	Text   string `json:"text"`
}

type apiEvalResult struct {
	Text      string          `json:"text"`
	Embeds    []command.Embed `json:"embeds,omitzero"`
	Reactions []string        `json:"reactions,omitzero"`
	Private   bool            `json:"private,omitzero"`
	Status    int             `json:"status"`
}

// apiEval evaluates a message as though it were sent by an unprivileged
// user on the "api" platform. Servers named in requests are API servers, so
// evaluations never see or change the configuration, grants, or audit log of
// servers on other platforms.
func (robo *Robot) apiEval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	trace := uuid.New()
	log := slog.With(slog.String("api", "eval"), slog.Any("trace", trace))
	log.InfoContext(ctx, "handle", slog.String("route", r.Pattern), slog.String("remote", r.RemoteAddr))
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/json")
	var req apiEvalRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		log.WarnContext(ctx, "bad request", slog.Any("err", err))
		jsonerror(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.User == "" {
		req.User = "api"
	}
	msg := message.Received{
		ID:        trace.String(),
		Platform:  "api",
		Server:    req.Server,
		Channel:   req.Server,
		Sender:    req.User,
		Name:      req.User,
		Text:      req.Text,
		Timestamp: time.Now().UnixMilli(),
	}
	res, err := robo.bot.Evaluate(ctx, &msg)
	switch {
	case err == nil: // do nothing
	case command.IsFatal(err):
		log.ErrorContext(ctx, "evaluation failed", slog.Any("err", err))
		jsonerror(w, http.StatusInternalServerError, "evaluation failed")
		return
	default:
		log.InfoContext(ctx, "command failed", slog.Any("err", err))
		status := http.StatusBadRequest
		if errors.As(err, new(*command.PermissionError)) {
			status = http.StatusForbidden
		}
		jsonerror(w, status, err.Error())
		return
	}
	u := apiEvalResult{
		Text:      res.Text(),
		Embeds:    res.Embeds,
		Reactions: res.Reactions,
		Private:   res.Private,
		Status:    http.StatusOK,
	}
	b, err := json.Marshal(&u)
	if err != nil {
		panic(err)
	}
	if _, err := w.Write(b); err != nil {
		log.ErrorContext(ctx, "write response failed", slog.Any("err", err))
	}
}
