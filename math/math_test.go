package math

import (
	"testing"
)

func TestVec3Operations(t *testing.T) {
	v1 := NewVec3(1, 2, 3)
	v2 := NewVec3(4, 5, 6)

	// Addition
	result := v1.Add(v2)
	expected := NewVec3(5, 7, 9)
	if result != expected {
		t.Errorf("Add: expected %v, got %v", expected, result)
	}

	// Subtraction
	result = v2.Sub(v1)
	expected = NewVec3(3, 3, 3)
	if result != expected {
		t.Errorf("Sub: expected %v, got %v", expected, result)
	}

	// Scalar multiplication
	result = v1.Mul(2)
	expected = NewVec3(2, 4, 6)
	if result != expected {
		t.Errorf("Mul: expected %v, got %v", expected, result)
	}

	// Cross product (X x Y = Z in right-handed system)
	cross := NewVec3(1, 0, 0).Cross(NewVec3(0, 1, 0))
	if expected = NewVec3(0, 0, 1); cross != expected {
		t.Errorf("Cross: expected %v, got %v", expected, cross)
	}
}

func TestVec3CrossWinding(t *testing.T) {
	// Counter-clockwise in a y-up plane gives a positive Z.
	a := NewVec3(1, 0, 0)
	b := NewVec3(0.5, 0.5, 0)
	c := NewVec3(-0.5, 0.5, 0)
	z := b.Sub(a).Cross(c.Sub(a)).Z
	if z <= 0 {
		t.Errorf("Cross: expected positive winding, got %v", z)
	}
	z = c.Sub(a).Cross(b.Sub(a)).Z
	if z >= 0 {
		t.Errorf("Cross: expected negative winding, got %v", z)
	}
}

func TestVec3Array(t *testing.T) {
	v := NewVec3(-0.5, 0.5, 0)
	arr := v.Array()
	if arr != [3]float32{-0.5, 0.5, 0} {
		t.Errorf("Array: expected [-0.5 0.5 0], got %v", arr)
	}
}

func TestVec3Clamp01(t *testing.T) {
	v := NewVec3(-1, 0.25, 2).Clamp01()
	expected := NewVec3(0, 0.25, 1)
	if v != expected {
		t.Errorf("Clamp01: expected %v, got %v", expected, v)
	}
	if Vec3One.Clamp01() != Vec3One {
		t.Errorf("Clamp01: expected %v unchanged", Vec3One)
	}
	if Vec3Zero.Clamp01() != Vec3Zero {
		t.Errorf("Clamp01: expected %v unchanged", Vec3Zero)
	}
}
