package feed

import (
	"regexp"
	"strings"

	"github.com/jasperfordesq-ai/nexus-relevance/internal/profile"
)

// Recognized video platforms. A link to one of these counts as a video
// boost and is excluded from the generic link boost.
var videoHosts = []string{
	"youtube.com",
	"youtu.be",
	"vimeo.com",
	"tiktok.com",
	"dailymotion.com",
}

var (
	linkPattern    = regexp.MustCompile(`https?://\S+`)
	hashtagPattern = regexp.MustCompile(`#\w`)
	mentionPattern = regexp.MustCompile(`@\w`)
)

// QualityScore computes the content-quality multiplier for a post.
// Each boost applies independently when its condition holds; a post
// with none of the signals scores a neutral 1.0.
func QualityScore(content, imageURL string, p profile.FeedParams) float64 {
	if !p.QualityEnabled {
		return 1.0
	}

	score := 1.0

	if imageURL != "" {
		score *= p.QualityImageBoost
	}

	video := hasVideoLink(content)
	if video {
		score *= p.QualityVideoBoost
	}
	// A generic link only counts when it was not already credited as a
	// video link.
	if !video && linkPattern.MatchString(content) {
		score *= p.QualityLinkBoost
	}

	if hashtagPattern.MatchString(content) {
		score *= p.QualityHashtagBoost
	}
	if mentionPattern.MatchString(content) {
		score *= p.QualityMentionBoost
	}

	if len([]rune(content)) >= p.QualityLengthMin {
		score *= p.QualityLengthBonus
	}

	return score
}

func hasVideoLink(content string) bool {
	lower := strings.ToLower(content)
	for _, host := range videoHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}
