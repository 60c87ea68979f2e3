package flyweight

import (
	"context"
	"time"
)

// Hooks defines event callbacks for cache operations.
//
// Hooks that receive an instance get it for the duration of the call only;
// a hook that stores it keeps the instance alive and defeats reclamation.
// OnReclaim hooks run on the runtime's cleanup goroutine for collected
// instances and must return quickly.
type Hooks struct {
	// OnHit is called when a lookup finds a live instance
	OnHit []OnHitHook

	// OnMiss is called when a lookup finds no live instance
	OnMiss []OnMissHook

	// OnConstruct is called after a factory call succeeds and the instance is stored
	OnConstruct []OnConstructHook

	// OnConstructError is called when a factory call fails
	OnConstructError []OnConstructErrorHook

	// OnJoin is called when a caller receives another caller's construction result
	OnJoin []OnJoinHook

	// OnReclaim is called when a slot is removed because its instance was reclaimed
	OnReclaim []OnReclaimHook

	// Context-aware hooks, called with the caller's context
	// OnHitCtx is called when a lookup finds a live instance
	OnHitCtx []OnHitHookCtx

	// OnMissCtx is called when a lookup finds no live instance
	OnMissCtx []OnMissHookCtx
}

// Hook function type definitions
type (
	// OnHitHook is called when a cache hit occurs
	OnHitHook func(typeID, key string, instance any)

	// OnMissHook is called when a cache miss occurs
	OnMissHook func(typeID, key string)

	// OnConstructHook is called when the factory produced a new instance
	OnConstructHook func(typeID, key string, instance any, took time.Duration)

	// OnConstructErrorHook is called when the factory failed
	OnConstructErrorHook func(typeID, key string, err error)

	// OnJoinHook is called when a caller joined an in-flight construction
	OnJoinHook func(typeID, key string)

	// OnReclaimHook is called when a slot is removed
	OnReclaimHook func(typeID, key string, reason ReclaimReason)

	// OnHitHookCtx is called when a cache hit occurs with the caller's context
	OnHitHookCtx func(ctx context.Context, typeID, key string, instance any)

	// OnMissHookCtx is called when a cache miss occurs with the caller's context
	OnMissHookCtx func(ctx context.Context, typeID, key string)
)

// ReclaimReason indicates how an expired slot was removed
type ReclaimReason int

const (
	// ReclaimReasonCollected indicates the runtime cleanup for the instance removed the slot
	ReclaimReasonCollected ReclaimReason = iota

	// ReclaimReasonPurged indicates a lookup or Purge found the slot expired
	ReclaimReasonPurged
)

func (r ReclaimReason) String() string {
	switch r {
	case ReclaimReasonCollected:
		return "collected"
	case ReclaimReasonPurged:
		return "purged"
	default:
		return "unknown"
	}
}

// AddOnHit adds an OnHit hook
func (h *Hooks) AddOnHit(hook OnHitHook) {
	h.OnHit = append(h.OnHit, hook)
}

// AddOnMiss adds an OnMiss hook
func (h *Hooks) AddOnMiss(hook OnMissHook) {
	h.OnMiss = append(h.OnMiss, hook)
}

// AddOnConstruct adds an OnConstruct hook
func (h *Hooks) AddOnConstruct(hook OnConstructHook) {
	h.OnConstruct = append(h.OnConstruct, hook)
}

// AddOnConstructError adds an OnConstructError hook
func (h *Hooks) AddOnConstructError(hook OnConstructErrorHook) {
	h.OnConstructError = append(h.OnConstructError, hook)
}

// AddOnJoin adds an OnJoin hook
func (h *Hooks) AddOnJoin(hook OnJoinHook) {
	h.OnJoin = append(h.OnJoin, hook)
}

// AddOnReclaim adds an OnReclaim hook
func (h *Hooks) AddOnReclaim(hook OnReclaimHook) {
	h.OnReclaim = append(h.OnReclaim, hook)
}

// AddOnHitCtx adds an OnHitCtx hook
func (h *Hooks) AddOnHitCtx(hook OnHitHookCtx) {
	h.OnHitCtx = append(h.OnHitCtx, hook)
}

// AddOnMissCtx adds an OnMissCtx hook
func (h *Hooks) AddOnMissCtx(hook OnMissHookCtx) {
	h.OnMissCtx = append(h.OnMissCtx, hook)
}

// Merge appends every hook of other to h
func (h *Hooks) Merge(other *Hooks) *Hooks {
	if other == nil {
		return h
	}
	h.OnHit = append(h.OnHit, other.OnHit...)
	h.OnMiss = append(h.OnMiss, other.OnMiss...)
	h.OnConstruct = append(h.OnConstruct, other.OnConstruct...)
	h.OnConstructError = append(h.OnConstructError, other.OnConstructError...)
	h.OnJoin = append(h.OnJoin, other.OnJoin...)
	h.OnReclaim = append(h.OnReclaim, other.OnReclaim...)
	h.OnHitCtx = append(h.OnHitCtx, other.OnHitCtx...)
	h.OnMissCtx = append(h.OnMissCtx, other.OnMissCtx...)
	return h
}

// invokeOnHit calls all OnHit and OnHitCtx hooks
func (h *Hooks) invokeOnHit(ctx context.Context, typeID, key string, instance any) {
	if h == nil {
		return
	}
	for _, hook := range h.OnHit {
		if hook != nil {
			hook(typeID, key, instance)
		}
	}
	for _, hook := range h.OnHitCtx {
		if hook != nil {
			hook(ctx, typeID, key, instance)
		}
	}
}

// invokeOnMiss calls all OnMiss and OnMissCtx hooks
func (h *Hooks) invokeOnMiss(ctx context.Context, typeID, key string) {
	if h == nil {
		return
	}
	for _, hook := range h.OnMiss {
		if hook != nil {
			hook(typeID, key)
		}
	}
	for _, hook := range h.OnMissCtx {
		if hook != nil {
			hook(ctx, typeID, key)
		}
	}
}

func (h *Hooks) invokeOnConstruct(typeID, key string, instance any, took time.Duration) {
	if h == nil {
		return
	}
	for _, hook := range h.OnConstruct {
		if hook != nil {
			hook(typeID, key, instance, took)
		}
	}
}

func (h *Hooks) invokeOnConstructError(typeID, key string, err error) {
	if h == nil {
		return
	}
	for _, hook := range h.OnConstructError {
		if hook != nil {
			hook(typeID, key, err)
		}
	}
}

func (h *Hooks) invokeOnJoin(typeID, key string) {
	if h == nil {
		return
	}
	for _, hook := range h.OnJoin {
		if hook != nil {
			hook(typeID, key)
		}
	}
}

func (h *Hooks) invokeOnReclaim(typeID, key string, reason ReclaimReason) {
	if h == nil {
		return
	}
	for _, hook := range h.OnReclaim {
		if hook != nil {
			hook(typeID, key, reason)
		}
	}
}
