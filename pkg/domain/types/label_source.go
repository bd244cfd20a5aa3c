package types

// LabelSource records where a topic's name came from
type LabelSource string

const (
	// LabelSourceLabeler means the external labeling collaborator produced the name
	LabelSourceLabeler LabelSource = "labeler"
	// LabelSourceFallback means the name was derived from the top terms
	LabelSourceFallback LabelSource = "fallback"
)

func (s LabelSource) String() string {
	return string(s)
}
