package rayengine

import (
	"fmt"

	"github.com/alex-ozdemir/raylet/pkg/types"
	"github.com/alex-ozdemir/raylet/pkg/wire"
)

// StubTracer is a package-local stand-in for the excluded intersection
// kernel: it pops one traversal frame per call and treats a frame with
// Node == 0 as a miss, any other Node as a trivial hit. It is enough to
// exercise routing and finalization without linking a real BVH.
type StubTracer struct{}

// Trace implements Tracer.
func (StubTracer) Trace(ray types.RayState) (types.RayState, error) {
	if len(ray.ToVisit) == 0 {
		return ray, fmt.Errorf("rayengine: stub tracer: %w: empty toVisit", wire.ErrProtocolViolation)
	}
	frame := ray.PopToVisit()
	if frame.Node == 0 {
		return ray, nil
	}
	ray.Hit = &types.Hit{Treelet: frame.Treelet, PrimitiveID: frame.Node, U: 0.5, V: 0.5}
	return ray, nil
}

// StubShader is a package-local stand-in for the excluded shading
// kernel. Every hit produces one shadow ray (toward a trivial light in
// the same treelet) and, while bounces remain, one continuation ray.
type StubShader struct{}

// Shade implements Shader.
func (StubShader) Shade(ray types.RayState) ([]types.RayState, error) {
	if ray.Hit == nil {
		return nil, fmt.Errorf("rayengine: stub shader: %w: missing hit", wire.ErrProtocolViolation)
	}
	treelet := ray.Hit.Treelet

	shadow := ray
	shadow.Hit = nil
	shadow.IsShadowRay = true
	shadow.ToVisit = append(append([]types.TraversalFrame(nil), ray.ToVisit...),
		types.TraversalFrame{Treelet: treelet, Node: 0})

	out := []types.RayState{shadow}

	if ray.RemainingBounces > 0 {
		bounce := ray
		bounce.Hit = nil
		bounce.IsShadowRay = false
		bounce.Bounces++
		bounce.RemainingBounces--
		bounce.ToVisit = append(append([]types.TraversalFrame(nil), ray.ToVisit...),
			types.TraversalFrame{Treelet: treelet, Node: 1})
		out = append(out, bounce)
	}
	return out, nil
}
