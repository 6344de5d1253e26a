package types

import "time"

// TreeletID identifies a disjoint, independently-traceable subtree of the
// scene acceleration structure. TreeletID 0 is the shared root placeholder
// assigned to every worker.
type TreeletID uint32

// WorkerID identifies a worker process, assigned monotonically by the
// coordinator starting at 1.
type WorkerID uint32

// ObjectType tags a scene object by kind.
type ObjectType string

const (
	ObjectScene        ObjectType = "SCENE"
	ObjectCamera       ObjectType = "CAMERA"
	ObjectSampler      ObjectType = "SAMPLER"
	ObjectLights       ObjectType = "LIGHTS"
	ObjectTreelet      ObjectType = "TREELET"
	ObjectMaterial     ObjectType = "MATERIAL"
	ObjectTexture      ObjectType = "TEXTURE"
	ObjectTriangleMesh ObjectType = "TRIANGLEMESH"
)

// ObjectKey is a tagged (type, id) reference to a scene object.
type ObjectKey struct {
	Type ObjectType `json:"type"`
	ID   uint32     `json:"id"`
}

// Point2i is an integer 2D point (pixel coordinates).
type Point2i struct {
	X, Y int32
}

// Point2f is a float 2D point (film-space coordinates).
type Point2f struct {
	X, Y float64
}

// Point3f is a float 3D point.
type Point3f struct {
	X, Y, Z float64
}

// Vector3f is a float 3D vector.
type Vector3f struct {
	X, Y, Z float64
}

// Bounds2i is an axis-aligned integer rectangle, half-open on the max
// corner: it covers [pMin.X, pMax.X) x [pMin.Y, pMax.Y).
type Bounds2i struct {
	PMin Point2i `json:"pMin"`
	PMax Point2i `json:"pMax"`
}

// Width returns the extent of the bounds along X.
func (b Bounds2i) Width() int32 { return b.PMax.X - b.PMin.X }

// Height returns the extent of the bounds along Y.
func (b Bounds2i) Height() int32 { return b.PMax.Y - b.PMin.Y }

// Empty reports whether the bounds cover zero pixels.
func (b Bounds2i) Empty() bool { return b.Width() <= 0 || b.Height() <= 0 }

// Spectrum is a simplified RGB throughput/radiance value. The real
// renderer's spectral representation is a downstream concern; the core
// only needs to move this value around unexamined.
type Spectrum struct {
	R, G, B float64
}

// Add returns the element-wise sum of two spectra.
func (s Spectrum) Add(o Spectrum) Spectrum {
	return Spectrum{R: s.R + o.R, G: s.G + o.G, B: s.B + o.B}
}

// IsBlack reports whether the spectrum carries no energy.
func (s Spectrum) IsBlack() bool { return s.R == 0 && s.G == 0 && s.B == 0 }

// Sample identifies a single pixel sample across its whole lifetime,
// independent of which treelet or worker is currently advancing it.
type Sample struct {
	ID     uint64  `json:"id"`
	Num    uint32  `json:"num"`
	Pixel  Point2i `json:"pixel"`
	PFilm  Point2f `json:"pFilm"`
	Weight float64 `json:"weight"`
}

// Ray is a camera-derived differential ray.
type Ray struct {
	Origin      Point3f  `json:"origin"`
	Direction   Vector3f `json:"direction"`
	TMax        float64  `json:"tMax"`
	Time        float64  `json:"time"`
	HasDiff     bool     `json:"hasDiff"`
	RxOrigin    Point3f  `json:"rxOrigin,omitempty"`
	RyOrigin    Point3f  `json:"ryOrigin,omitempty"`
	RxDirection Vector3f `json:"rxDirection,omitempty"`
	RyDirection Vector3f `json:"ryDirection,omitempty"`
}

// TraversalFrame is one entry in a ray's toVisit stack: the treelet it
// still needs to enter, the BVH node index to resume from within that
// treelet, and an optional local transform for instanced geometry.
type TraversalFrame struct {
	Treelet   TreeletID   `json:"treelet"`
	Node      uint32      `json:"node"`
	HasXform  bool        `json:"hasXform,omitempty"`
	Transform [16]float64 `json:"transform,omitempty"`
}

// Hit is a deferred shading record: an intersection that has been found
// but must be shaded by the treelet that owns the hit geometry.
type Hit struct {
	Treelet     TreeletID `json:"treelet"`
	PrimitiveID uint32    `json:"primitiveId"`
	U           float64   `json:"u"`
	V           float64   `json:"v"`
}

// RayState is the full serialized continuation of an in-flight path
// sample -- the currency shuttled between workers. A RayState is owned by
// exactly one queue at a time; forwarding moves it into a datagram and the
// local copy is discarded, it is never shared across queues.
type RayState struct {
	Sample Sample `json:"sample"`
	Ray    Ray    `json:"ray"`

	ToVisit []TraversalFrame `json:"toVisit"`
	Hit     *Hit             `json:"hit,omitempty"`

	Beta Spectrum `json:"beta"`
	Ld   Spectrum `json:"ld"`

	Bounces          uint32 `json:"bounces"`
	RemainingBounces uint32 `json:"remainingBounces"`

	IsShadowRay bool `json:"isShadowRay"`
}

// NextTreelet returns the treelet that must process this ray next and
// reports whether one exists. A ray with neither toVisit nor hit set is a
// protocol violation, see pkg/rayengine.
func (r *RayState) NextTreelet() (TreeletID, bool) {
	if n := len(r.ToVisit); n > 0 {
		return r.ToVisit[n-1].Treelet, true
	}
	if r.Hit != nil {
		return r.Hit.Treelet, true
	}
	return 0, false
}

// PopToVisit removes and returns the top traversal frame.
func (r *RayState) PopToVisit() TraversalFrame {
	n := len(r.ToVisit)
	f := r.ToVisit[n-1]
	r.ToVisit = r.ToVisit[:n-1]
	return f
}

// FinishedSample is the payload of a completed ray: a contribution to be
// accumulated into the film.
type FinishedSample struct {
	PFilm  Point2f  `json:"pFilm"`
	L      Spectrum `json:"l"`
	Weight float64  `json:"weight"`
}

// Treelet is the atomic schedulable unit of scene geometry.
type Treelet struct {
	ID           TreeletID         `json:"id"`
	SizeBytes    int64             `json:"sizeBytes"`
	Dependencies []ObjectKey       `json:"dependencies"`
	Holders      map[WorkerID]bool `json:"holders"`
}

// ObjectRecord is the coordinator's metadata for one scene object.
type ObjectRecord struct {
	Key       ObjectKey          `json:"key"`
	SizeBytes int64              `json:"sizeBytes"`
	Workers   map[WorkerID]bool  `json:"workers"`
}

// ConnState is the peer connection finite-state machine's state.
type ConnState string

const (
	ConnConnecting ConnState = "connecting"
	ConnConnected  ConnState = "connected"
)

// WorkerRecord is the coordinator's view of one connected worker.
type WorkerRecord struct {
	ID          WorkerID           `json:"id"`
	TCPAddr     string             `json:"tcpAddr"`
	UDPAddr     string             `json:"udpAddr"`
	Tile        Bounds2i           `json:"tile"`
	Objects     map[ObjectKey]bool `json:"objects"`
	Treelets    map[TreeletID]bool `json:"treelets"`
	FreeBytes   int64              `json:"freeBytes"`
	State       ConnState          `json:"state"`
	ConnectedAt time.Time          `json:"connectedAt"`
}

// AssignmentMode selects the treelet assignment strategy used by the
// coordinator's assignment engine (pkg/assign).
type AssignmentMode string

const (
	AssignmentUniform AssignmentMode = "uniform"
	AssignmentStatic  AssignmentMode = "static"
	AssignmentDynamic AssignmentMode = "dynamic"
)

// FinishedRaysPolicy controls what a worker does with rays that have
// produced a finished sample: forward them to the coordinator as
// FinishedRays, or discard them locally after counting. This resolves the
// open question in the design notes about the intended fate of the
// finished-ray queue.
type FinishedRaysPolicy string

const (
	FinishedRaysForward FinishedRaysPolicy = "forward"
	FinishedRaysDiscard FinishedRaysPolicy = "discard"
)
