// Package router decides where a request envelope goes. It holds no state:
// Route reads an immutable Registry and returns a Decision, so it can be
// called from any number of goroutines without coordination.
package router

// Route validates env and resolves its service against registry.
//
// An envelope with no keys is rejected as EmptyPayload, one without a
// serviceName key as MissingServiceName, and one whose serviceName is not
// registered (the empty string included) as UnknownService.
func Route(env Envelope, registry Registry) Decision {
	if env.IsEmpty() {
		return Rejected(EmptyPayload, "")
	}

	service, ok := env.Service()
	if !ok {
		return Rejected(MissingServiceName, "")
	}

	target, ok := registry.Lookup(service)
	if !ok {
		return Rejected(UnknownService, service)
	}

	return Routed(service, target)
}
