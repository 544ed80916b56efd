// Package dashboard serves a read-only HTTP view of a run in progress so an
// operator can watch worker phases without tailing logs.
package dashboard

import (
	"net/http"
	"sort"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// PeerStatus is the last observed phase of one worker session.
type PeerStatus struct {
	Addr  string `json:"addr"`
	State string `json:"state"`
}

// GroupStatus is one coordinator's view of its fleet.
type GroupStatus struct {
	Name  string       `json:"name"`
	Peers []PeerStatus `json:"peers"`
}

// Snapshot is everything /status returns.
type Snapshot struct {
	RunID    string        `json:"run_id"`
	Scenario string        `json:"scenario"`
	Step     string        `json:"step"`
	Groups   []GroupStatus `json:"groups"`
}

// Server publishes the latest snapshot. Writers replace whole sections;
// readers get a copy.
type Server struct {
	mu       sync.Mutex
	snapshot Snapshot
}

func NewServer(runID, scenario string) *Server {
	return &Server{snapshot: Snapshot{RunID: runID, Scenario: scenario}}
}

// SetStep records the orchestrator's current step, e.g. "provisioning".
func (s *Server) SetStep(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Step = step
}

// UpdateGroup replaces the peer statuses for one coordinator, keyed by
// address.
func (s *Server) UpdateGroup(name string, statuses map[string]string) {
	peers := make([]PeerStatus, 0, len(statuses))
	for addr, state := range statuses {
		peers = append(peers, PeerStatus{Addr: addr, State: state})
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].Addr < peers[j].Addr })

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.snapshot.Groups {
		if s.snapshot.Groups[i].Name == name {
			s.snapshot.Groups[i].Peers = peers
			return
		}
	}
	s.snapshot.Groups = append(s.snapshot.Groups, GroupStatus{Name: name, Peers: peers})
}

func (s *Server) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.snapshot
	snapshot.Groups = make([]GroupStatus, len(s.snapshot.Groups))
	for i, group := range s.snapshot.Groups {
		group.Peers = append([]PeerStatus(nil), group.Peers...)
		snapshot.Groups[i] = group
	}
	return snapshot
}

// Handler builds the HTTP mux. Split from Start so tests can exercise it
// without binding a port.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.GET("/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, s.Snapshot())
	})
	return e
}

// Start serves the dashboard in the background. A bind failure only logs;
// the dashboard is best-effort and never blocks a run.
func (s *Server) Start(addr string) {
	e := s.Handler()
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			e.Logger.Warnf("dashboard unavailable: %v", err)
		}
	}()
}
