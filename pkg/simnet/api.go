package simnet

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/skyfleet/meshnet/internal/httputil"
)

// API exposes a read-only monitor over a running mesh.
type API struct {
	net *Network
	rec *Recorder
}

// NewAPI constructs the monitor handler. rec may be nil when no
// recorder is attached; the events route then reports an empty feed.
func NewAPI(n *Network, rec *Recorder) *API {
	return &API{net: n, rec: rec}
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r := chi.NewRouter()

	r.Use(middleware.Timeout(time.Second * 30))

	r.Route("/api", func(r chi.Router) {
		r.Get("/topology", a.getTopology())
		r.Get("/events", a.getEvents())
	})

	r.ServeHTTP(w, req)
}

func (a *API) getTopology() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, r, http.StatusOK, a.net.Topology())
	}
}

func (a *API) getEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.rec == nil {
			httputil.WriteJSON(w, r, http.StatusOK, []Record{})
			return
		}

		recs, err := a.rec.Records()
		if err != nil {
			httputil.WriteJSON(w, r, http.StatusInternalServerError, err)
			return
		}
		if recs == nil {
			recs = []Record{}
		}
		httputil.WriteJSON(w, r, http.StatusOK, recs)
	}
}
