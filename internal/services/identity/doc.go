// Package identity resolves who is calling and what they may do.
//
// A request is resolved in three stages:
//
//	candidates → SessionAffinityResolver → ActiveSession
//	           → IdentityResolutionChain → ResolvedIdentity (or anonymous)
//	           → PermissionAggregator    → AuthContext (cached on the context)
//
// The affinity resolver probes several session stores in a fixed order and
// activates the first one carrying an identity marker. The chain tries its
// tiers in strict precedence (session snapshot, session user id, persistent
// token, bearer token) and the first tier producing an identity wins; tiers
// never merge. The aggregator unions grants from every GrantSource and
// applies the bootstrap-role safety net.
//
// Nothing in this package writes identity or grant state. Session stores are
// only read; sessions that lose the probe are left untouched.
package identity
