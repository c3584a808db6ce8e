// Package router delivers persisted events to registered handlers.
//
// Handlers run sequentially in registration order. A failing, cancelled or
// panicking handler is logged and never prevents later handlers from running.
// Predicates and decorators narrow which deliveries reach a handler:
//
//	r.Register("heating", router.Chain(
//	    router.If(router.IfChannelLike(`^nest:thermostat:.*:ambient_temperature_c$`)),
//	    router.If(router.IfChanged),
//	)(handle))
package router
