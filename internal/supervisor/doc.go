// Package supervisor deploys and supervises crews of agents.
//
// A [Supervisor] turns a deployment request into registered agents and drives
// them through two phases: initialize, then dispatch of the shared prompt to
// every agent that reached running. Each phase runs in batches no larger than
// the effective concurrency bound. A batch runs concurrently on a
// sourcegraph/conc pool and settles completely before the next batch starts.
//
// # Failure Isolation
//
// Per-agent failures never abort a deployment. Transport errors, cancellation
// and panics are captured into that agent's [Outcome]; siblings in the same
// batch are unaffected. Only configuration problems (no agents, unknown
// providers, too many agents, an unbuildable transport) fail [Supervisor.Deploy]
// itself, and they do so before any agent is registered.
//
// # Control Operations
//
// Pause, Resume and Terminate bypass batching and go straight to the agent
// through the registry. The agent serializes them against its in-flight
// operation. Terminate cancels that operation and removes the agent.
//
// # Basic Usage
//
//	sup := supervisor.New(supervisor.Options{
//	    Logger:         logger,
//	    MaxConcurrency: 4,
//	    Retry:          retry.Policy{MaxRetries: 2, Backoff: time.Second},
//	})
//	defer sup.Shutdown()
//
//	report, err := sup.Deploy(ctx, &deployment.Config{
//	    Agents: []deployment.AgentConfig{{Provider: "claude", Count: 2}, {Provider: "openai", Count: 1}},
//	    Prompt: "Review the auth module",
//	})
//	if err != nil {
//	    return err // configuration error, nothing was started
//	}
//	os.Exit(report.ExitCode())
package supervisor
