package model

// ClusterResult is the output of density-based clustering. Labels and
// Probabilities are aligned with the input points.
type ClusterResult struct {
	Labels        []int     // 0..ClusterCount-1, or NoiseLabel
	Probabilities []float64 // membership strength in [0, 1]; 0 for noise
	ClusterCount  int
}

// Members returns indexes of points with the given label in input order
func (r *ClusterResult) Members(label int) []int {
	var members []int
	for i, l := range r.Labels {
		if l == label {
			members = append(members, i)
		}
	}
	return members
}

// NoiseCount returns the number of points labeled as noise
func (r *ClusterResult) NoiseCount() int {
	return len(r.Members(NoiseLabel))
}
