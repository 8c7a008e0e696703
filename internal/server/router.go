package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
)

var ErrorServiceNotFound = errors.New("service not found")

// Router maps request hosts to upstream targets. An empty host registers the
// wildcard target used when no specific host matches.
type Router struct {
	statePath  string
	targets    map[string]*Target
	targetLock sync.RWMutex
}

type savedState struct {
	Targets map[string]string `json:"targets"`
}

func NewRouter(statePath string) *Router {
	return &Router{
		statePath: statePath,
		targets:   map[string]*Target{},
	}
}

func (r *Router) RestoreLastSavedState() error {
	f, err := os.Open(r.statePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("No state to restore", "path", r.statePath)
			return nil
		}
		slog.Error("Failed to restore saved state", "path", r.statePath, "error", err)
		return err
	}
	defer f.Close()

	var state savedState
	err = json.NewDecoder(f).Decode(&state)
	if err != nil {
		slog.Error("Failed to decode saved state", "path", r.statePath, "error", err)
		return err
	}

	slog.Info("Restoring saved state", "path", r.statePath)
	for host, targetURL := range state.Targets {
		err := r.SetTarget(host, targetURL)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	target := r.targetForRequest(req)
	if target == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		target.ServeHTTP(w, req)
	}
}

func (r *Router) SetTarget(host, targetURL string) error {
	target, err := NewTarget(targetURL)
	if err != nil {
		return err
	}

	slog.Info("Deploying", "host", host, "target", target.Target())

	var replaced *Target
	r.withWriteLock(func() error {
		replaced = r.targets[host]
		r.targets[host] = target
		return nil
	})

	if replaced != nil {
		replaced.Drain(DefaultDrainTimeout)
	}

	r.saveState()
	return nil
}

func (r *Router) RemoveTarget(host string) error {
	var removed *Target

	err := r.withWriteLock(func() error {
		target, ok := r.targets[host]
		if !ok {
			return ErrorServiceNotFound
		}

		removed = target
		delete(r.targets, host)
		return nil
	})
	if err != nil {
		return err
	}

	removed.Drain(DefaultDrainTimeout)
	r.saveState()
	return nil
}

func (r *Router) ListTargets() map[string]string {
	result := map[string]string{}

	r.withReadLock(func() error {
		for host, target := range r.targets {
			result[host] = target.Target()
		}
		return nil
	})

	return result
}

// Private

func (r *Router) targetForRequest(req *http.Request) *Target {
	host := req.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)

	r.targetLock.RLock()
	defer r.targetLock.RUnlock()

	if target, ok := r.targets[host]; ok {
		return target
	}
	return r.targets[""]
}

func (r *Router) saveState() {
	state := savedState{Targets: r.ListTargets()}

	f, err := os.Create(r.statePath)
	if err != nil {
		slog.Error("Unable to save state", "path", r.statePath, "error", err)
		return
	}
	defer f.Close()

	err = json.NewEncoder(f).Encode(state)
	if err != nil {
		slog.Error("Unable to save state", "path", r.statePath, "error", err)
		return
	}

	slog.Debug("Saved state", "path", r.statePath)
}

func (r *Router) withReadLock(fn func() error) error {
	r.targetLock.RLock()
	defer r.targetLock.RUnlock()

	return fn()
}

func (r *Router) withWriteLock(fn func() error) error {
	r.targetLock.Lock()
	defer r.targetLock.Unlock()

	return fn()
}
