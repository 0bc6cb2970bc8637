// Package engine holds the scheduling shared by model conversion and device
// execution.
package engine

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Schedule orders nodes so that every node comes after all of its
// predecessors. The same algorithm serves source operations and device
// operators; callers only supply the predecessor lookup.
//
// Nodes are picked in repeated passes over the declaration order, so
// independent nodes keep their relative order and the result is
// reproducible for identical inputs.
func Schedule[N comparable](nodes []N, predecessors func(N) []N) ([]N, error) {
	known := make(map[N]bool, len(nodes))
	for _, node := range nodes {
		if known[node] {
			return nil, status.Errorf(codes.Internal, "node %v declared more than once", node)
		}
		known[node] = true
	}

	dependencies := make([][]N, len(nodes))
	for i, node := range nodes {
		for _, dep := range predecessors(node) {
			if !known[dep] {
				return nil, status.Errorf(codes.Internal, "node %v depends on %v, which is not part of the graph", node, dep)
			}
			dependencies[i] = append(dependencies[i], dep)
		}
	}

	evaluationOrder := make([]N, 0, len(nodes))
	done := make(map[N]bool, len(nodes))

	for {
		progress := false
		for i, node := range nodes {
			if done[node] {
				continue
			}

			ready := true
			for _, dep := range dependencies[i] {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				done[node] = true
				evaluationOrder = append(evaluationOrder, node)
				progress = true
			}
		}
		if !progress {
			break
		}
	}

	if len(evaluationOrder) != len(nodes) {
		return nil, status.Errorf(codes.Internal, "graph contains a cycle: %d of %d nodes could not be scheduled", len(nodes)-len(evaluationOrder), len(nodes))
	}

	return evaluationOrder, nil
}
