package normalmap

import (
	"math"
	"sort"

	"github.com/unixpickle/model3d/model3d"
)

// surfaceNormal finds the unit normal of the surface a ray
// hits first, oriented against the ray.
//
// Scanned meshes often contain (near-)duplicate triangles.
// Hits within a small distance of the first one are
// treated as one surface and their normals are averaged.
func surfaceNormal(collider model3d.Collider, ray *model3d.Ray) (model3d.Coord3D, bool) {
	var collisions []model3d.RayCollision
	collider.RayCollisions(ray, func(r model3d.RayCollision) {
		if validNormal(r.Normal) {
			collisions = append(collisions, r)
		}
	})
	if len(collisions) == 0 {
		return model3d.Coord3D{}, false
	}

	sort.Slice(collisions, func(i, j int) bool {
		return collisions[i].Scale < collisions[j].Scale
	})

	epsilon := collider.Max().Sub(collider.Min()).Norm() * 1e-8
	first := collisions[0].Scale
	var sum model3d.Coord3D
	for _, c := range collisions {
		if c.Scale-first > epsilon {
			break
		}
		n := c.Normal
		if n.Dot(ray.Direction) > 0 {
			n = n.Scale(-1)
		}
		sum = sum.Add(n)
	}
	if sum.Norm() == 0 {
		return model3d.Coord3D{}, false
	}
	return sum.Normalize(), true
}

func validNormal(c model3d.Coord3D) bool {
	for _, x := range []float64{c.X, c.Y, c.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return c.Norm() > 0
}
