package chronos

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/theoremus-urban-solutions/transit-chronos/schedule"
	"github.com/theoremus-urban-solutions/transit-chronos/scheduler"
)

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

var startedAt = time.Now()

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := healthResponse{
		Status: "ok",
		Uptime: time.Since(startedAt).Truncate(time.Second).String(),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

type stateResponse struct {
	State schedule.CompositeState `json:"state"`
	Hours schedule.Hours          `json:"hours"`
}

func handleState(watcher *Watcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, hours, err := watcher.State(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stateResponse{State: state, Hours: hours})
	}
}

type jobsResponse struct {
	Jobs    []scheduler.JobInfo `json:"jobs"`
	Running []string            `json:"running"`
}

func handleJobs(sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jobsResponse{
			Jobs:    sched.Jobs(),
			Running: sched.Running(),
		})
	}
}
