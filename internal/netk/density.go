package netk

import "math"

// PointNetworkDensity returns length / (n*(n-1)), the normalising factor of
// the observed K-function.
func PointNetworkDensity(networkLength float64, numPoints int) (float64, error) {
	if err := checkLength(networkLength); err != nil {
		return 0, err
	}
	if numPoints < 2 {
		return 0, invalidInputf("point-network density needs at least 2 points, got %d", numPoints)
	}
	n := float64(numPoints)
	return networkLength / (n * (n - 1)), nil
}

// UniformDensity returns length / n^2, the density expected of n uniformly
// placed points. It is used to express envelope counts as bounds.
func UniformDensity(networkLength float64, numPoints int) (float64, error) {
	if err := checkLength(networkLength); err != nil {
		return 0, err
	}
	if numPoints < 1 {
		return 0, invalidInputf("uniform density needs at least 1 point, got %d", numPoints)
	}
	n := float64(numPoints)
	return networkLength / (n * n), nil
}

func checkLength(networkLength float64) error {
	if !(networkLength > 0) || math.IsInf(networkLength, 0) {
		return invalidInputf("network length must be positive, got %v", networkLength)
	}
	return nil
}
