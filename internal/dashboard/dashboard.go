// Package dashboard serves a live operations view of the prediction
// engine: registry composition, training queue load, monitoring pass
// results and the alert feed, pushed to the browser over a websocket.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"donorsense/internal/service"
)

// refreshInterval paces snapshot collection. Each snapshot reads the
// alert bucket, so the tick stays well above datastore latency.
const refreshInterval = 2 * time.Second

// Dashboard streams engine insights to connected browsers and serves the
// single-page view that renders them.
type Dashboard struct {
	svc              *service.Service
	server           *http.Server
	upgrader         websocket.Upgrader
	clients          map[*websocket.Conn]bool
	clientsMu        sync.RWMutex
	broadcastChannel chan service.Insights
	stopChannel      chan struct{}
	isRunning        bool
	mu               sync.RWMutex
}

// New builds the dashboard server on the given port.
func New(svc *service.Service, port int) *Dashboard {
	d := &Dashboard{
		svc:              svc,
		upgrader:         websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:          make(map[*websocket.Conn]bool),
		broadcastChannel: make(chan service.Insights, 16),
		stopChannel:      make(chan struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", d.handleIndex).Methods("GET")
	r.HandleFunc("/api/insights", d.handleInsightsAPI).Methods("GET")
	r.HandleFunc("/ws", d.handleWebSocket).Methods("GET")

	d.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return d
}

// Start launches the collector, the broadcaster and the HTTP server.
func (d *Dashboard) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isRunning {
		return fmt.Errorf("dashboard is already running")
	}

	go d.collector()
	go d.broadcaster()

	go func() {
		log.Info().Str("address", d.server.Addr).Msg("Starting operations dashboard")
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Dashboard server failed")
		}
	}()

	d.isRunning = true
	return nil
}

// Stop closes client connections and shuts the server down.
func (d *Dashboard) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isRunning {
		return nil
	}

	close(d.stopChannel)

	d.clientsMu.Lock()
	for client := range d.clients {
		client.Close()
	}
	d.clients = make(map[*websocket.Conn]bool)
	d.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down dashboard server")
		return err
	}

	d.isRunning = false
	log.Info().Msg("Operations dashboard stopped")
	return nil
}

// collector snapshots engine insights on a fixed tick.
func (d *Dashboard) collector() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			select {
			case d.broadcastChannel <- d.svc.Insights():
			default:
				// Broadcaster is behind, drop this snapshot.
			}
		case <-d.stopChannel:
			return
		}
	}
}

// broadcaster fans snapshots out to every connected client.
func (d *Dashboard) broadcaster() {
	for {
		select {
		case ins := <-d.broadcastChannel:
			d.broadcast(ins)
		case <-d.stopChannel:
			return
		}
	}
}

func (d *Dashboard) broadcast(ins service.Insights) {
	d.clientsMu.Lock()
	defer d.clientsMu.Unlock()

	data, err := json.Marshal(ins)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal insights for broadcast")
		return
	}

	for client := range d.clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			client.Close()
			delete(d.clients, client)
		}
	}
}

// handleInsightsAPI serves the current snapshot as JSON.
func (d *Dashboard) handleInsightsAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(d.svc.Insights()); err != nil {
		log.Error().Err(err).Msg("Failed to encode insights")
	}
}

// handleWebSocket upgrades the connection and keeps it registered until
// the client goes away.
func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade dashboard websocket")
		return
	}
	defer conn.Close()

	d.clientsMu.Lock()
	d.clients[conn] = true
	d.clientsMu.Unlock()

	// Push the current state immediately rather than waiting a tick.
	if data, err := json.Marshal(d.svc.Insights()); err == nil {
		conn.WriteMessage(websocket.TextMessage, data)
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	d.clientsMu.Lock()
	delete(d.clients, conn)
	d.clientsMu.Unlock()
}

// handleIndex serves the dashboard page.
func (d *Dashboard) handleIndex(w http.ResponseWriter, r *http.Request) {
	t, err := template.New("dashboard").Parse(indexPage)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	t.Execute(w, nil)
}
