// Package coordination runs one benchmark round end to end: it starts the
// remote workers over SSM, builds the coordinator side of the protocol over
// TCP and drives the fleet through its phase chain.
package coordination

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/distbench/orchestrator/config"
	"github.com/distbench/orchestrator/infra"
	"github.com/distbench/orchestrator/russula"
	"github.com/distbench/orchestrator/russula/netbench"
	"github.com/distbench/orchestrator/utils"
)

const (
	// Remote workers need a moment between the SSM dispatch and their
	// listener coming up before the first dial attempt is worth making.
	workerStartupDelay = 5 * time.Second
	buildAttempts      = 60
)

// Round is a coordinator aggregate plus the SSM command running its workers.
// It moves through three calls: the constructor reaches the Ready barrier,
// Start fires the benchmark, WaitDone blocks until every worker finished.
type Round[S russula.State] struct {
	name  string
	cfg   *config.Config
	coord *russula.Russula[S]
	cmd   *infra.Command
	ready S
	done  S
}

// NewServerRound starts the server workers and connects to them.
func NewServerRound(ctx context.Context, cfg *config.Config, ssmClient *ssm.Client, scenario *config.Scenario, detail *infra.InfraDetail) (*Round[netbench.ServerCoordState], error) {
	return newRound(ctx, cfg, ssmClient, "server round",
		detail.InstanceIDs(infra.Server),
		infra.RunWorkerCommand(cfg, scenario, infra.Server, nil),
		detail.ServerIPs(),
		netbench.NewServerCoordProtocol,
		netbench.ServerCoordReady, netbench.ServerCoordDone)
}

// NewClientRound starts the client workers, pointing them at the already
// running servers, and connects to them.
func NewClientRound(ctx context.Context, cfg *config.Config, ssmClient *ssm.Client, scenario *config.Scenario, detail *infra.InfraDetail) (*Round[netbench.ClientCoordState], error) {
	return newRound(ctx, cfg, ssmClient, "client round",
		detail.InstanceIDs(infra.Client),
		infra.RunWorkerCommand(cfg, scenario, infra.Client, detail.ServerIPs()),
		detail.ClientIPs(),
		netbench.NewClientCoordProtocol,
		netbench.ClientCoordReady, netbench.ClientCoordDone)
}

func newRound[S russula.State](ctx context.Context, cfg *config.Config, ssmClient *ssm.Client, name string, instanceIDs, workerCmd, workerIPs []string, newProtocol func() russula.Protocol[S], ready, done S) (*Round[S], error) {
	cmd, err := infra.SendCommand(ctx, ssmClient, name, instanceIDs, workerCmd)
	if err != nil {
		return nil, err
	}
	utils.OrchLog("%s: workers dispatched (%s)", name, cmd.ID)
	time.Sleep(workerStartupDelay)

	addrs := make([]string, 0, len(workerIPs))
	for _, ip := range workerIPs {
		addrs = append(addrs, fmt.Sprintf("%s:%d", ip, cfg.RussulaPort))
	}
	coord, err := buildWithRetry(ctx, russula.NewBuilder(addrs, newProtocol, cfg.PollDelay), cfg.PollDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: connect workers: %w", name, err)
	}
	if err := coord.RunUntilReady(); err != nil {
		coord.Close()
		return nil, fmt.Errorf("%s: await ready: %w", name, err)
	}
	utils.OrchLog("%s: all workers ready", name)

	return &Round[S]{
		name:  name,
		cfg:   cfg,
		coord: coord,
		cmd:   cmd,
		ready: ready,
		done:  done,
	}, nil
}

// buildWithRetry redials the whole fleet until every worker accepts, since
// the fail-fast build tears down partial connectivity.
func buildWithRetry[S russula.State](ctx context.Context, builder *russula.Builder[S], delay time.Duration) (*russula.Russula[S], error) {
	var err error
	for attempt := 0; attempt < buildAttempts; attempt++ {
		var coord *russula.Russula[S]
		coord, err = builder.Build()
		if err == nil {
			return coord, nil
		}
		utils.WarnLog("connect attempt %d: %v", attempt+1, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, err
}

// Start fires the user-driven transition out of Ready on every session and
// polls once so the run announcement actually goes out, even when WaitDone is
// deferred past another round.
func (r *Round[S]) Start() error {
	if !r.coord.AllReport(r.ready) {
		return fmt.Errorf("%s: not all workers at %s", r.name, r.ready)
	}
	utils.OrchLog("%s: starting benchmark", r.name)
	if err := r.coord.UserAdvanceAll(); err != nil {
		return err
	}
	_, err := r.coord.PollToward(r.done)
	return err
}

// WaitDone polls the fleet toward its terminal phase, cross-checking the SSM
// command so a crashed worker process surfaces as an error instead of an
// endless poll.
func (r *Round[S]) WaitDone(ctx context.Context, ssmClient *ssm.Client) error {
	for {
		poll, err := r.coord.PollToward(r.done)
		if err != nil {
			return fmt.Errorf("%s: %w", r.name, err)
		}
		if poll.IsReady() {
			utils.OrchLog("%s: complete", r.name)
			return nil
		}
		if _, err := infra.PollCommand(ctx, ssmClient, r.cmd); err != nil {
			return fmt.Errorf("%s: %w", r.name, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.PollDelay):
		}
	}
}

// Statuses reports the current phase of every worker session, keyed by
// address.
func (r *Round[S]) Statuses() map[string]string {
	statuses := make(map[string]string, len(r.coord.Peers()))
	for _, p := range r.coord.Peers() {
		statuses[p.Addr] = p.Protocol.State().String()
	}
	return statuses
}

func (r *Round[S]) Name() string {
	return r.name
}

func (r *Round[S]) Close() {
	r.coord.Close()
}
