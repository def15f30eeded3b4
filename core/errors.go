package core

import "errors"

var (
	// ErrDuplicateName is returned when a descriptor is registered under a
	// name that is already taken.
	ErrDuplicateName = errors.New("agent name already registered")

	// ErrCyclicDependency is returned when adding a descriptor's child set
	// would introduce a cycle in the child-agent graph.
	ErrCyclicDependency = errors.New("child agents form a cycle")

	// ErrUnknownAgent is returned when resolving a name that was never
	// registered.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrSpecNotFound is returned by the tool provider when an API resource
	// description does not exist.
	ErrSpecNotFound = errors.New("api resource description not found")

	// ErrToolResolution wraps failures to load or validate an API resource
	// description during agent instantiation.
	ErrToolResolution = errors.New("tool resolution failed")

	// ErrRuntimeUnavailable marks transient transport failures against the
	// agent runtime. Callers retry at most once per turn, then surface a
	// user-visible transient error.
	ErrRuntimeUnavailable = errors.New("agent runtime unavailable")

	// ErrHandleExpired signals that the runtime invalidated a previously
	// created agent handle. Triggers one re-instantiation attempt.
	ErrHandleExpired = errors.New("agent handle expired")

	// ErrConfiguration marks fatal startup-time configuration problems such
	// as a missing model deployment identifier.
	ErrConfiguration = errors.New("invalid configuration")
)
