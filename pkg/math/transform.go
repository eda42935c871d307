package math

// Transform is a translation, rotation and scale applied in S, R, T order.
type Transform struct {
	Translation Vec3
	Rotation    Quat
	Scale       Vec3
}

// TransformIdentity returns a transform that changes nothing.
func TransformIdentity() Transform {
	return Transform{Rotation: QuatIdentity(), Scale: Vec3{1, 1, 1}}
}

// Matrix returns Translation * Rotation * Scale.
func (t Transform) Matrix() Mat4 {
	return Compose(t.Translation, t.Rotation, t.Scale)
}

// Lerp blends two transforms: translation and scale linearly, rotation by slerp.
func (t Transform) Lerp(other Transform, alpha float32) Transform {
	return Transform{
		Translation: t.Translation.Lerp(other.Translation, alpha),
		Rotation:    t.Rotation.Slerp(other.Rotation, alpha).Normalize(),
		Scale:       t.Scale.Lerp(other.Scale, alpha),
	}
}

// TransformPoint applies the transform to a point.
func (t Transform) TransformPoint(p Vec3) Vec3 {
	return t.Rotation.Rotate(p.Mul(t.Scale)).Add(t.Translation)
}
