package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/arturpragacz/labelgraph/area"
	"github.com/arturpragacz/labelgraph/engine"
	"github.com/arturpragacz/labelgraph/health"
	"github.com/arturpragacz/labelgraph/metric"
	"github.com/arturpragacz/labelgraph/registry"
	"github.com/arturpragacz/labelgraph/types"
)

// startHTTPServer exposes metrics, health, and the read-only query API.
func startHTTPServer(addr string, metrics *metric.Registry, monitor *health.Monitor,
	eng *engine.Engine, areas *area.Layer, store *registry.Store, logger *slog.Logger) *http.Server {

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/healthz", monitor.Handler(appName))

	api := &queryAPI{engine: eng, areas: areas, store: store}
	mux.HandleFunc("GET /v1/effective/{kind}/{id}", api.effective)
	mux.HandleFunc("GET /v1/frontend/{id}", api.frontend)
	mux.HandleFunc("GET /v1/label/{id}/entities", api.labelEntities)
	mux.HandleFunc("GET /v1/label/{id}/devices", api.labelDevices)
	mux.HandleFunc("GET /v1/areas", api.listAreas)
	mux.HandleFunc("GET /v1/areas/{id}/entities", api.areaEntities)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
		}
	}()
	return server
}

// queryAPI serves the read-only label query surface over JSON.
type queryAPI struct {
	engine *engine.Engine
	areas  *area.Layer
	store  *registry.Store
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func subjectFromPath(r *http.Request) (types.Subject, bool) {
	id := r.PathValue("id")
	switch r.PathValue("kind") {
	case "entity":
		return types.EntitySubject(types.EntityID(id)), true
	case "device":
		return types.DeviceSubject(types.DeviceID(id)), true
	}
	return types.Subject{}, false
}

func (a *queryAPI) effective(w http.ResponseWriter, r *http.Request) {
	subject, ok := subjectFromPath(r)
	if !ok {
		http.Error(w, `kind must be "entity" or "device"`, http.StatusBadRequest)
		return
	}

	primary, hasArea := a.areas.PrimaryAreaOf(subject)
	resp := struct {
		Subject types.Subject   `json:"subject"`
		Labels  []types.LabelID `json:"labels"`
		Direct  []types.LabelID `json:"direct,omitempty"`
		Area    types.LabelID   `json:"area,omitempty"`
	}{
		Subject: subject,
		Labels:  a.engine.EffectiveLabels(subject).Sorted(),
	}
	if subject.Kind == types.SubjectEntity {
		resp.Direct = a.store.EntityLabels(types.EntityID(subject.ID)).Sorted()
	} else {
		resp.Direct = a.store.DeviceLabels(types.DeviceID(subject.ID)).Sorted()
	}
	if hasArea {
		resp.Area = primary
	}
	writeJSON(w, resp)
}

func (a *queryAPI) frontend(w http.ResponseWriter, r *http.Request) {
	id := types.EntityID(r.PathValue("id"))
	writeJSON(w, struct {
		Entity types.EntityID  `json:"entity"`
		Labels []types.LabelID `json:"labels"`
	}{id, a.engine.FrontendLabels(id)})
}

func (a *queryAPI) labelEntities(w http.ResponseWriter, r *http.Request) {
	label := types.LabelID(r.PathValue("id"))
	writeJSON(w, struct {
		Label    types.LabelID    `json:"label"`
		Entities []types.EntityID `json:"entities"`
	}{label, a.engine.LabelEntities(label)})
}

func (a *queryAPI) labelDevices(w http.ResponseWriter, r *http.Request) {
	label := types.LabelID(r.PathValue("id"))
	writeJSON(w, struct {
		Label   types.LabelID    `json:"label"`
		Devices []types.DeviceID `json:"devices"`
	}{label, a.engine.LabelDevices(label)})
}

func (a *queryAPI) listAreas(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, struct {
		Areas []area.Area `json:"areas"`
	}{a.areas.Areas()})
}

func (a *queryAPI) areaEntities(w http.ResponseWriter, r *http.Request) {
	id := types.LabelID(r.PathValue("id"))
	if !a.engine.Current().IsArea(id) {
		http.Error(w, "unknown area", http.StatusNotFound)
		return
	}
	writeJSON(w, struct {
		Area     types.LabelID    `json:"area"`
		Entities []types.EntityID `json:"entities"`
		Devices  []types.DeviceID `json:"devices"`
	}{id, a.areas.EntitiesInArea(id), a.areas.DevicesInArea(id)})
}
