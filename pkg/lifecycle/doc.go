// Package lifecycle coordinates process shutdown.
//
// Components register a cleanup callback with a name and a priority.
// On shutdown (a signal, a panic in main, or an explicit call) the
// [Coordinator] runs the callbacks from the lowest priority number to the
// highest, all under one deadline:
//
//	coord := lifecycle.New(lifecycle.WithLogger(log))
//	defer coord.ShutdownOnPanic()
//
//	coord.Register("http", lifecycle.PriorityHTTP, server.Shutdown)
//	coord.Register("redis", lifecycle.PriorityConnections, redis.Shutdown(client))
//
//	return coord.Wait(ctx)
//
// A component that tears itself down early calls Unregister so the global
// shutdown does not close its resources twice.
package lifecycle
