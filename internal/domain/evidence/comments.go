package evidence

import (
	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
)

// Comment is one crowd comment as returned by the platform, in relevance order
type Comment struct {
	Text   string `json:"text"`
	Author string `json:"author,omitempty"`
	Likes  int64  `json:"likes"`
}

// Comment scoring weights
const (
	keywordPoints     = 10
	bulletPoints      = 5
	bulletCap         = 25
	quantityPoints    = 3
	quantityCap       = 30
	structureBonus    = 15
	structureMinLines = 5
	spamPenalty       = 10

	// CommentThreshold is the minimum score for a comment to become evidence
	CommentThreshold = 30
)

var likeTiers = []struct {
	min    int64
	points int
}{
	{1000, 15},
	{100, 10},
	{10, 5},
}

// CommentScorer ranks comments as ingredient-list candidates
type CommentScorer struct {
	recipe    *KeywordSet
	spam      *KeywordSet
	threshold int
}

// NewCommentScorer creates a scorer with the stock vocabularies
func NewCommentScorer() *CommentScorer {
	return &CommentScorer{
		recipe:    NewKeywordSet(RecipeKeywords),
		spam:      NewKeywordSet(SpamMarkers),
		threshold: CommentThreshold,
	}
}

// Score computes the heuristic score for a single comment
func (s *CommentScorer) Score(c Comment) int {
	score := keywordPoints * s.recipe.Count(c.Text)

	bullets, listLines := countLines(c.Text)
	score += min(bulletPoints*bullets, bulletCap)
	score += min(quantityPoints*CountQuantities(c.Text), quantityCap)
	if listLines >= structureMinLines {
		score += structureBonus
	}

	for _, tier := range likeTiers {
		if c.Likes >= tier.min {
			score += tier.points
			break
		}
	}

	score -= spamPenalty * s.spam.Count(c.Text)
	return score
}

// Best returns the highest-scoring comment at or above the threshold.
// Ties go to the earlier, more relevant comment.
func (s *CommentScorer) Best(comments []Comment) (cookcard.SourceEvidence, bool) {
	bestIdx, bestScore := -1, 0
	for i, c := range comments {
		score := s.Score(c)
		if score < s.threshold {
			continue
		}
		if bestIdx == -1 || score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx == -1 {
		return cookcard.SourceEvidence{}, false
	}
	return cookcard.SourceEvidence{
		Text:  comments[bestIdx].Text,
		Kind:  cookcard.SourceComment,
		Score: bestScore,
	}, true
}
