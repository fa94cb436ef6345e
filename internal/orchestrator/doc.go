// Package orchestrator coordinates worker agents behind a single
// Orchestrate(ctx, task) entry point.
//
// Three variants are provided:
//   - LinearChain runs a fixed roster in order, feeding each output into the next step
//   - FanOutFanIn asks the collaborator which workers are relevant, runs them in
//     parallel and synthesizes their answers
//   - DependencyGraph has the collaborator plan subtasks with dependencies,
//     schedules them topologically and synthesizes the outcomes
//
// In FanOutFanIn and DependencyGraph a failing worker never aborts the run:
// its slot carries a failure placeholder and synthesis still happens.
// LinearChain stops at the first failing step and reports a failed result.
// Named orchestrators are built from a config table by Registry.
//
// Example usage:
//
//	reg, err := orchestrator.NewRegistry(cfg.Orchestrators, client)
//	orch, err := reg.Resolve("default")
//	res, err := orch.Orchestrate(ctx, "Compare the two caching strategies")
package orchestrator
