package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/persistence/indexdb"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/world"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/transport/observer"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/transport/ws"
)

func newMux(cfg Config, w *world.World, idx *indexdb.SQLiteIndex, log *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(cfg.WorldID, w, idx))
	if cfg.AdminHTTP {
		mux.HandleFunc("/admin/v1/state", loopbackOnly(stateHandler(w)))
		mux.HandleFunc("/admin/v1/snapshot", loopbackOnly(snapshotHandler(w)))
		obs := observer.NewServer(w, log.Named("observer"))
		mux.HandleFunc("/admin/v1/observer/bootstrap", obs.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obs.WSHandler())
	} else {
		log.Info("admin endpoints disabled")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, log.Named("ws")).Handler())
	return mux
}

func metricsHandler(worldID string, w *world.World, idx *indexdb.SQLiteIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := w.Metrics()

		gauge := func(name, help string, v any, labels ...string) {
			fmt.Fprintf(rw, "# HELP %s %s\n# TYPE %s gauge\n", name, help, name)
			lbl := fmt.Sprintf("world=%q", worldID)
			for i := 0; i+1 < len(labels); i += 2 {
				lbl += fmt.Sprintf(",%s=%q", labels[i], labels[i+1])
			}
			fmt.Fprintf(rw, "%s{%s} %v\n", name, lbl, v)
		}
		gauge("gas_world_tick", "Current world tick.", m.Tick)
		gauge("gas_world_actors", "Actors in the world.", m.Actors)
		gauge("gas_world_clients", "Connected clients.", m.Clients)
		gauge("gas_world_observers", "Connected observers.", m.Observers)
		gauge("gas_world_active_abilities", "Specs with at least one live activation.", m.ActiveAbilities)
		gauge("gas_world_step_ms", "Last tick step duration in milliseconds.", fmt.Sprintf("%.3f", m.StepMS))
		gauge("gas_world_event_cursor", "Events emitted since start.", m.EventCursor)
		gauge("gas_world_dropped_sends", "Outbound messages dropped on full client queues.", m.DroppedSend)

		fmt.Fprintf(rw, "# HELP gas_world_queue_depth Channel backlog depth.\n# TYPE gas_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "gas_world_queue_depth{world=%q,queue=\"inbox\"} %d\n", worldID, m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "gas_world_queue_depth{world=%q,queue=\"join\"} %d\n", worldID, m.QueueDepths.Join)
		fmt.Fprintf(rw, "gas_world_queue_depth{world=%q,queue=\"leave\"} %d\n", worldID, m.QueueDepths.Leave)

		kinds := make([]string, 0, len(m.Events))
		for k := range m.Events {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		if len(kinds) > 0 {
			fmt.Fprintf(rw, "# HELP gas_world_tick_events Events of each kind in the last tick.\n# TYPE gas_world_tick_events gauge\n")
			for _, k := range kinds {
				fmt.Fprintf(rw, "gas_world_tick_events{world=%q,kind=%q} %d\n", worldID, k, m.Events[k])
			}
		}

		if idx != nil {
			st := idx.Stats()
			gauge("gas_index_queue_depth", "Index writer backlog.", st.QueueDepth)
			gauge("gas_index_dropped", "Index writes dropped on a full queue.", st.DropTickTotal+st.DropAuditTotal+st.DropSnapshotTotal)
			gauge("gas_index_write_failures", "Index writes that failed.", st.WriteFailTotal)
		}
	}
}

func stateHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		st, err := w.RequestState(ctx)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(struct {
			State   any                `json:"state"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{st, w.Metrics()})
	}
}

func snapshotHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		tick, err := w.RequestSnapshot(ctx)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
	}
}

func loopbackOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
