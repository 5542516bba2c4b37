// Package event provides a pub-sub event bus for decoupled inter-component
// communication in agentcrew.
//
// The supervisor publishes agent lifecycle and deployment progress events;
// the CLI subscribes to log them and to print progress. Neither side knows
// about the other.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Agent Lifecycle:
//   - [AgentCreatedEvent]: Emitted when an agent is registered
//   - [AgentStatusChangedEvent]: Emitted after every status transition
//   - [AgentRespondedEvent]: Emitted when a dispatched prompt settles
//
// Deployment:
//   - [DeploymentStartedEvent]: Emitted once a deployment passes validation
//   - [BatchCompletedEvent]: Emitted after each batch settles
//   - [DeploymentCompletedEvent]: Emitted when the report is ready
//   - [SupervisorShutdownEvent]: Emitted when every agent has been terminated
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called synchronously
// on the publishing goroutine and protected against panics; a panicking handler
// will not prevent other handlers from being called.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//
//	bus.Subscribe(event.TypeAgentStatusChanged, func(e event.Event) {
//	    changed := e.(event.AgentStatusChangedEvent)
//	    fmt.Printf("%s: %s -> %s\n", changed.AgentID, changed.From, changed.To)
//	})
//
//	bus.SubscribeAll(func(e event.Event) {
//	    logger.Debug("event", "type", e.EventType())
//	})
//
//	id := bus.Subscribe(event.TypeDeploymentCompleted, handler)
//	bus.Unsubscribe(id)
package event
