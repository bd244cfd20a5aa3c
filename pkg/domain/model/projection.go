package model

// NoiseLabel is the cluster label of points that belong to no cluster
const NoiseLabel = -1

// Point2D is a coordinate in the visualization plane
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ProjectionPoint is one wish in the 2D point cloud retained for a run
type ProjectionPoint struct {
	ModelUpdateID ModelUpdateID `json:"model_update_id"`
	WishID        WishID        `json:"wish_id"`
	X             float64       `json:"x"`
	Y             float64       `json:"y"`
	ClusterLabel  int           `json:"cluster_label"`
	TopicID       *TopicID      `json:"topic_id,omitempty"`
}

// IsNoise reports whether the point was classified as noise in its run
func (p *ProjectionPoint) IsNoise() bool {
	return p.ClusterLabel == NoiseLabel
}
