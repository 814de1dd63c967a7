// Command httpcored is a minimal demo binary wiring httpconfig, httplog,
// httpmetrics and httpclient together, grounded on chproxy's main.go: load
// config, expose /metrics via promhttp, serve until signalled.
package main

import (
	"flag"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arran4/httpcore/cachestore"
	"github.com/arran4/httpcore/httpclient"
	"github.com/arran4/httpcore/httpconfig"
	"github.com/arran4/httpcore/httplog"
	"github.com/arran4/httpcore/httpmetrics"
)

var (
	configFile = flag.String("config", "httpcore.yml", "configuration filename")
	listenAddr = flag.String("addr", ":8080", "address to serve /metrics on")
)

func main() {
	flag.Parse()

	httplog.Infof("loading config: %s", *configFile)
	cfg, err := httpconfig.LoadFile(*configFile)
	if err != nil {
		httplog.Fatalf("can't load config %q: %s", *configFile, err)
	}
	httplog.SetDebug(cfg.LogDebug)

	client, err := buildClient(cfg)
	if err != nil {
		httplog.Fatalf("can't build client: %s", err)
	}
	probeUpstream(client, cfg)

	http.Handle("/metrics", promhttp.Handler())
	httplog.Infof("serving metrics on %q", *listenAddr)
	httplog.Fatalf("server error: %s", http.ListenAndServe(*listenAddr, nil))
}

func buildClient(cfg *httpconfig.Config) (*httpclient.Client, error) {
	client := httpclient.New(nil)

	if err := client.Dispatcher.SetMaxRequests(cfg.Dispatcher.MaxRequests); err != nil {
		return nil, err
	}
	if err := client.Dispatcher.SetMaxRequestsPerHost(cfg.Dispatcher.MaxRequestsPerHost); err != nil {
		return nil, err
	}

	metrics := httpmetrics.New("httpcore")
	metrics.MustRegister(prometheus.DefaultRegisterer)
	client.SetMetrics(metrics)

	switch cfg.Cache.Mode {
	case "redis":
		redisClient, err := cachestore.NewRedisClient(cfg.Cache.Redis)
		if err != nil {
			return nil, err
		}
		codec, err := cachestore.NewCodec(cfg.Cache.Codec)
		if err != nil {
			return nil, err
		}
		client.Store = cachestore.NewRedisStore(redisClient, codec)
	default:
		client.Store = cachestore.NewMemoryStore()
	}

	return client, nil
}

// probeUpstream exercises the client's request path against the first
// configured upstream, so this binary actually demonstrates the thing it
// wires up rather than only config load and metrics registration. It is a
// fire-and-log sanity check, not a health check: a failure is logged and
// startup continues.
func probeUpstream(client *httpclient.Client, cfg *httpconfig.Config) {
	if len(cfg.Upstreams) == 0 || len(cfg.Upstreams[0].Hosts) == 0 {
		httplog.Infof("no upstreams configured, skipping startup probe")
		return
	}

	host := cfg.Upstreams[0].Hosts[0]
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("http://%s/", host), nil)
	if err != nil {
		httplog.Errorf("httpcored: building probe request for %q: %s", host, err)
		return
	}

	httplog.Infof("probing upstream %q", host)
	resp, err := client.Do(req)
	if err != nil {
		httplog.Errorf("httpcored: probe request to %q failed: %s", host, err)
		return
	}
	defer resp.Body.Close()
	httplog.Infof("probe of %q returned status %s", host, resp.Status)
}
