package graph

import (
	"context"
	"fmt"
	"sort"
)

// FollowStore is the single query the resolver needs: every following ID
// reachable from any of the given followers, fetched in one batch.
type FollowStore interface {
	FollowingIDs(ctx context.Context, followerIDs []int64) ([]int64, error)
}

// FollowGraph maps each hop order to the set of user IDs first reached at
// that order. Order 0 is the root alone. Immutable after construction.
type FollowGraph struct {
	RootUserID int64

	usersByOrder [][]int64
	orders       map[int64]int
}

// MaxOrder returns the highest order that has any users
func (g *FollowGraph) MaxOrder() int {
	return len(g.usersByOrder) - 1
}

// UsersAtOrder returns the IDs first reached at the given order, ascending.
// Unpopulated orders return nil.
func (g *FollowGraph) UsersAtOrder(order int) []int64 {
	if order < 0 || order >= len(g.usersByOrder) {
		return nil
	}
	return g.usersByOrder[order]
}

// UserOrder returns the hop order a user was first reached at
func (g *FollowGraph) UserOrder(id int64) (int, bool) {
	order, ok := g.orders[id]
	return order, ok
}

// UserOrders returns a copy of the ID-to-order assignment
func (g *FollowGraph) UserOrders() map[int64]int {
	out := make(map[int64]int, len(g.orders))
	for id, order := range g.orders {
		out[id] = order
	}
	return out
}

// UserIDs returns every reached ID, optionally excluding the root
func (g *FollowGraph) UserIDs(includeRoot bool) []int64 {
	var ids []int64
	for order, bucket := range g.usersByOrder {
		if order == 0 && !includeRoot {
			continue
		}
		ids = append(ids, bucket...)
	}
	return ids
}

// Size returns the number of reached users, root included
func (g *FollowGraph) Size() int {
	return len(g.orders)
}

// Resolver computes bounded-degree follow graphs by breadth-first expansion
// over locally stored follow edges. Purely a read computation; safe to run
// concurrently with reconciliation writes.
type Resolver struct {
	follows FollowStore
}

// NewResolver creates a new graph resolver
func NewResolver(follows FollowStore) *Resolver {
	return &Resolver{follows: follows}
}

// Resolve expands from rootUserID up to maxOrder hops. Each level is one
// batched store query over the previous level's IDs; an ID already assigned
// to an earlier order is never reassigned. Expansion stops early when a level
// discovers nothing new.
func (r *Resolver) Resolve(ctx context.Context, rootUserID int64, maxOrder int) (*FollowGraph, error) {
	if maxOrder < 0 {
		return nil, fmt.Errorf("max order must be non-negative, got %d", maxOrder)
	}

	graph := &FollowGraph{
		RootUserID:   rootUserID,
		usersByOrder: [][]int64{{rootUserID}},
		orders:       map[int64]int{rootUserID: 0},
	}

	for order := 1; order <= maxOrder; order++ {
		previous := graph.usersByOrder[order-1]

		followingIDs, err := r.follows.FollowingIDs(ctx, previous)
		if err != nil {
			return nil, fmt.Errorf("failed to expand follow graph at order %d: %w", order, err)
		}

		var discovered []int64
		for _, id := range followingIDs {
			if _, seen := graph.orders[id]; seen {
				continue
			}
			graph.orders[id] = order
			discovered = append(discovered, id)
		}

		if len(discovered) == 0 {
			break
		}

		sort.Slice(discovered, func(i, j int) bool { return discovered[i] < discovered[j] })
		graph.usersByOrder = append(graph.usersByOrder, discovered)
	}

	return graph, nil
}
