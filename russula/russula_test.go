package russula

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubState is a minimal three-phase chain for aggregate-level tests.
type stubState int

const (
	stubInit stubState = iota
	stubRun
	stubDone
)

func (s stubState) String() string {
	switch s {
	case stubInit:
		return "Init"
	case stubRun:
		return "Run"
	case stubDone:
		return "Done"
	}
	return "Undefined"
}

func (s stubState) Token() []byte {
	return []byte(s.String())
}

type stubProtocol struct {
	state      stubState
	stuckAt    stubState // phase the stub refuses to leave; stubDone means never stuck
	connectErr error
}

func (p *stubProtocol) Connect(addr string) (net.Conn, error) {
	if p.connectErr != nil {
		return nil, p.connectErr
	}
	a, _ := net.Pipe()
	return a, nil
}

func (p *stubProtocol) State() stubState      { return p.state }
func (p *stubProtocol) ReadyState() stubState { return stubRun }
func (p *stubProtocol) DoneState() stubState  { return stubDone }

func (p *stubProtocol) TransitionStep() TransitionStep {
	if p.state == stubDone {
		return TransitionStep{Kind: Finished}
	}
	return TransitionStep{Kind: SelfDriven}
}

func (p *stubProtocol) AdvanceOnce(net.Conn) error {
	if p.state == p.stuckAt {
		return nil
	}
	if p.state < stubDone {
		p.state++
	}
	return nil
}

func (p *stubProtocol) UserAdvance(net.Conn) error {
	if p.state < stubDone {
		p.state++
	}
	return nil
}

func stubAggregate(states ...stubState) (*Russula[stubState], []*stubProtocol) {
	peers := make([]*Peer[stubState], 0, len(states))
	protos := make([]*stubProtocol, 0, len(states))
	for i, s := range states {
		p := &stubProtocol{state: s, stuckAt: s}
		protos = append(protos, p)
		peers = append(peers, &Peer[stubState]{
			Addr:     string(rune('a' + i)),
			Protocol: p,
		})
	}
	return New(peers, time.Millisecond), protos
}

func TestPollTowardBlocksOnStraggler(t *testing.T) {
	// Two sessions already done, one lagging: the barrier must report
	// Pending until the straggler catches up.
	agg, protos := stubAggregate(stubDone, stubDone, stubRun)

	poll, err := agg.PollToward(stubDone)
	require.NoError(t, err)
	assert.Equal(t, Pending, poll)

	// Unstick the straggler
	protos[2].stuckAt = stubDone
	poll, err = agg.PollToward(stubDone)
	require.NoError(t, err)
	assert.Equal(t, Ready, poll)
}

func TestPollTowardAllAtTarget(t *testing.T) {
	agg, _ := stubAggregate(stubDone, stubDone)
	poll, err := agg.PollToward(stubDone)
	require.NoError(t, err)
	assert.True(t, poll.IsReady())
}

func TestAllReport(t *testing.T) {
	agg, protos := stubAggregate(stubRun, stubRun)
	assert.True(t, agg.AllReport(stubRun))
	assert.False(t, agg.AllReport(stubDone))

	protos[0].state = stubDone
	assert.False(t, agg.AllReport(stubRun))
}

func TestPollUntilTimesOut(t *testing.T) {
	agg, _ := stubAggregate(stubInit)
	err := agg.PollUntil(stubDone, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrReadyTimeout)
}

func TestPollUntilReaches(t *testing.T) {
	agg, protos := stubAggregate(stubInit, stubInit)
	for _, p := range protos {
		p.stuckAt = stubDone
	}
	require.NoError(t, agg.PollUntil(stubDone, time.Second))
	assert.True(t, agg.AllReport(stubDone))
}

func TestBuilderSortsPeersByAddress(t *testing.T) {
	addrs := []string{"10.0.0.3:8888", "10.0.0.1:8888", "10.0.0.2:8888"}
	b := NewBuilder(addrs, func() Protocol[stubState] {
		return &stubProtocol{stuckAt: stubDone}
	}, time.Millisecond)

	agg, err := b.Build()
	require.NoError(t, err)
	defer agg.Close()

	peers := agg.Peers()
	require.Len(t, peers, 3)
	assert.Equal(t, "10.0.0.1:8888", peers[0].Addr)
	assert.Equal(t, "10.0.0.2:8888", peers[1].Addr)
	assert.Equal(t, "10.0.0.3:8888", peers[2].Addr)

	// The input slice is not reordered
	assert.Equal(t, "10.0.0.3:8888", addrs[0])
}

func TestBuilderFailsFast(t *testing.T) {
	built := 0
	b := NewBuilder([]string{"a", "b", "c"}, func() Protocol[stubState] {
		built++
		if built == 2 {
			return &stubProtocol{connectErr: &ConnectError{Addr: "b", Err: ErrNetworkBlocked}}
		}
		return &stubProtocol{stuckAt: stubDone}
	}, time.Millisecond)

	agg, err := b.Build()
	assert.Nil(t, agg)
	require.Error(t, err)
	var connErr *ConnectError
	assert.ErrorAs(t, err, &connErr)
}

func TestUserAdvanceAll(t *testing.T) {
	agg, _ := stubAggregate(stubInit, stubInit)
	require.NoError(t, agg.UserAdvanceAll())
	assert.True(t, agg.AllReport(stubRun))
}
