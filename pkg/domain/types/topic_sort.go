package types

import "fmt"

// TopicSort is the ordering used when listing topics
type TopicSort string

const (
	TopicSortPopular TopicSort = "popular"
	TopicSortRecent  TopicSort = "recent"
	TopicSortName    TopicSort = "name"
)

// AllTopicSorts returns all valid topic sort orders
func AllTopicSorts() []TopicSort {
	return []TopicSort{TopicSortPopular, TopicSortRecent, TopicSortName}
}

// IsValid checks if the sort order is valid
func (s TopicSort) IsValid() bool {
	switch s {
	case TopicSortPopular, TopicSortRecent, TopicSortName:
		return true
	default:
		return false
	}
}

// ParseTopicSort parses a string into a TopicSort. Empty means popular.
func ParseTopicSort(s string) (TopicSort, error) {
	if s == "" {
		return TopicSortPopular, nil
	}
	sort := TopicSort(s)
	if !sort.IsValid() {
		return "", fmt.Errorf("invalid topic sort: %s", s)
	}
	return sort, nil
}

func (s TopicSort) String() string {
	return string(s)
}
