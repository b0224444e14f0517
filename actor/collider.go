package actor

import "github.com/go-gl/mathgl/mgl64"

// Collider is a kinematic collision shape. It is never moved by the solver,
// only by its own velocity or by the caller between steps.
type Collider struct {
	// Spatial properties
	PreviousTransform Transform
	Transform         Transform

	Velocity        mgl64.Vec3 // Linear velocity (m/s)
	AngularVelocity mgl64.Vec3 // Angular velocity (rad/s)

	// Coulomb friction applied to particles in contact, 0 = frictionless
	Friction float64

	Shape ShapeInterface
}

// NewCollider creates a static collider at the given transform
func NewCollider(transform Transform, shape ShapeInterface) *Collider {
	transform = NewTransformAt(transform.Position, transform.Rotation)
	c := &Collider{
		PreviousTransform: transform,
		Transform:         transform,
		Shape:             shape,
	}
	c.Shape.ComputeAABB(c.Transform)

	return c
}

// Integrate advances the collider along its velocities
func (c *Collider) Integrate(dt float64) {
	c.PreviousTransform = c.Transform

	c.Transform.Position = c.Transform.Position.Add(c.Velocity.Mul(dt))

	if c.AngularVelocity.LenSqr() > 0 {
		omegaQuat := mgl64.Quat{V: c.AngularVelocity, W: 0}
		qDot := omegaQuat.Mul(c.Transform.Rotation).Scale(0.5)
		c.Transform.Rotation = c.Transform.Rotation.Add(qDot.Scale(dt)).Normalize()
		c.Transform.InverseRotation = c.Transform.Rotation.Inverse()
	}

	c.Shape.ComputeAABB(c.Transform)
}

// Phi returns the world space signed distance and outward normal at point
func (c *Collider) Phi(point mgl64.Vec3) (float64, mgl64.Vec3) {
	phi, normal := c.Shape.SignedDistance(c.Transform.ToLocal(point))
	return phi, c.Transform.RotateToWorld(normal)
}

// Displacement returns how far a point attached to the collider surface moved
// during the last Integrate call.
func (c *Collider) Displacement(point mgl64.Vec3) mgl64.Vec3 {
	local := c.PreviousTransform.ToLocal(point)
	return c.Transform.ToWorld(local).Sub(point)
}

// Collide pushes point out of the collider to thickness, and removes part of the
// tangential motion relative to the collider. start is the particle position at
// the beginning of the step. It returns the corrected point and whether a
// contact happened.
func (c *Collider) Collide(start, point mgl64.Vec3, thickness float64) (mgl64.Vec3, bool) {
	if !c.Shape.GetAABB().Thicken(thickness).ContainsPoint(point) {
		return point, false
	}

	phi, normal := c.Phi(point)
	penetration := thickness - phi
	if penetration <= 0 {
		return point, false
	}

	corrected := point.Add(normal.Mul(penetration))
	if c.Friction <= 0 {
		return corrected, true
	}

	// Relative tangential displacement over the step
	relative := corrected.Sub(start).Sub(c.Displacement(start))
	tangential := relative.Sub(normal.Mul(relative.Dot(normal)))
	tangentialLength := tangential.Len()
	if tangentialLength < 1e-12 {
		return corrected, true
	}

	// Static friction cancels the slide entirely, dynamic friction shortens it
	maxFriction := c.Friction * penetration
	if tangentialLength <= maxFriction {
		return corrected.Sub(tangential), true
	}
	return corrected.Sub(tangential.Mul(maxFriction / tangentialLength)), true
}
