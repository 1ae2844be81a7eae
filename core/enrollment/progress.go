package enrollment

// Summary holds the progress figures of an Enrollment. They are never stored:
// they derive from the progress set and the current videos of the course.
type Summary struct {
	CompletedVideos      int `json:"completedVideos"`
	TotalVideos          int `json:"totalVideos"`
	CompletionPercentage int `json:"completionPercentage"`
}

// Summarize computes the Summary of a progress set against a course holding totalVideos videos.
// Indices out of [0, totalVideos) (e.g. after the course lost videos) and duplicates are not counted.
func Summarize(progress []int, totalVideos int) Summary {
	seen := make(map[int]struct{}, len(progress))
	for _, idx := range progress {
		if ValidVideoIndex(idx, totalVideos) {
			seen[idx] = struct{}{}
		}
	}
	completed := len(seen)
	return Summary{
		CompletedVideos:      completed,
		TotalVideos:          totalVideos,
		CompletionPercentage: Percentage(completed, totalVideos),
	}
}

// Percentage returns 100*completed/total rounded half up, 0 if total is 0.
func Percentage(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	return (200*completed + total) / (2 * total)
}

func ValidVideoIndex(idx, totalVideos int) bool {
	return idx >= 0 && idx < totalVideos
}
