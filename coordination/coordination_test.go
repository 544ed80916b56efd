package coordination

import (
	"net"
	"testing"
	"time"

	"github.com/distbench/orchestrator/config"
	"github.com/distbench/orchestrator/russula"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubState int

const (
	stubInit stubState = iota
	stubReady
	stubRun
	stubDone
)

func (s stubState) Token() []byte { return []byte(s.String()) }

func (s stubState) String() string {
	switch s {
	case stubInit:
		return "stub_init"
	case stubReady:
		return "stub_ready"
	case stubRun:
		return "stub_run"
	default:
		return "stub_done"
	}
}

type stubProtocol struct {
	state    stubState
	advanced int
}

func (p *stubProtocol) Connect(addr string) (net.Conn, error) { return nil, nil }
func (p *stubProtocol) State() stubState                      { return p.state }
func (p *stubProtocol) ReadyState() stubState                 { return stubReady }
func (p *stubProtocol) DoneState() stubState                  { return stubDone }

func (p *stubProtocol) TransitionStep() russula.TransitionStep {
	return russula.TransitionStep{Kind: russula.SelfDriven}
}

func (p *stubProtocol) AdvanceOnce(conn net.Conn) error {
	if p.state < stubDone {
		p.state++
	}
	return nil
}

func (p *stubProtocol) UserAdvance(conn net.Conn) error {
	p.advanced++
	if p.state == stubReady {
		p.state = stubRun
	}
	return nil
}

func stubRound(states ...stubState) *Round[stubState] {
	peers := make([]*russula.Peer[stubState], 0, len(states))
	for i, state := range states {
		peers = append(peers, &russula.Peer[stubState]{
			Addr:     string(rune('a'+i)) + ":8888",
			Protocol: &stubProtocol{state: state},
		})
	}
	cfg := config.Read()
	return &Round[stubState]{
		name:  "stub round",
		cfg:   &cfg,
		coord: russula.New(peers, time.Millisecond),
		ready: stubReady,
		done:  stubDone,
	}
}

func TestStartRequiresReadyBarrier(t *testing.T) {
	round := stubRound(stubReady, stubInit)
	assert.Error(t, round.Start())
}

func TestStartAdvancesEveryPeer(t *testing.T) {
	round := stubRound(stubReady, stubReady)
	require.NoError(t, round.Start())
	for _, p := range round.coord.Peers() {
		// UserAdvance to Run, plus the one poll step Start issues
		assert.Equal(t, stubDone, p.Protocol.State())
		assert.Equal(t, 1, p.Protocol.(*stubProtocol).advanced)
	}
}

func TestStatusesReportsEveryPeer(t *testing.T) {
	round := stubRound(stubReady, stubRun)
	statuses := round.Statuses()
	assert.Equal(t, map[string]string{
		"a:8888": "stub_ready",
		"b:8888": "stub_run",
	}, statuses)
}
