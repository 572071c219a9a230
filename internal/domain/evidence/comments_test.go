package evidence

import (
	"testing"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recipeComment = "Ingredients:\n- 2 cups flour\n- 1 tsp salt\n- 3 eggs\n- 1 cup milk\n- 2 tbsp butter"

func TestCommentScorer_Score(t *testing.T) {
	scorer := NewCommentScorer()

	tests := []struct {
		name    string
		comment Comment
		want    int
	}{
		{
			// keyword 10 + bullets 25 (capped) + quantities 4*3 + structure 15 + likes 10
			name:    "FullIngredientList",
			comment: Comment{Text: recipeComment, Likes: 150},
			want:    72,
		},
		{
			name:    "PlainPraise",
			comment: Comment{Text: "Looks delicious!", Likes: 3},
			want:    0,
		},
		{
			// likes 15 - three spam markers
			name:    "SpamWithManyLikes",
			comment: Comment{Text: "Follow me for more recipes! link in bio https://spam.example", Likes: 2000},
			want:    -15,
		},
		{
			name:    "QuantityCap",
			comment: Comment{Text: "1 cup a 1 cup b 1 cup c 1 cup d 1 cup e 1 cup f 1 cup g 1 cup h 1 cup i 1 cup j 1 cup k 1 cup l", Likes: 0},
			want:    30,
		},
		{
			name:    "LikeTiers",
			comment: Comment{Text: "yum", Likes: 10},
			want:    5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scorer.Score(tt.comment))
		})
	}
}

func TestCommentScorer_Best(t *testing.T) {
	scorer := NewCommentScorer()

	t.Run("PicksHighestAboveThreshold", func(t *testing.T) {
		comments := []Comment{
			{Text: "so good"},
			{Text: recipeComment, Likes: 5},
			{Text: "recipe please!!"},
		}

		evidence, ok := scorer.Best(comments)

		require.True(t, ok)
		assert.Equal(t, cookcard.SourceComment, evidence.Kind)
		assert.Equal(t, recipeComment, evidence.Text)
		assert.GreaterOrEqual(t, evidence.Score, CommentThreshold)
	})

	t.Run("TiesGoToEarlierComment", func(t *testing.T) {
		first := Comment{Text: recipeComment, Author: "first"}
		second := Comment{Text: recipeComment, Author: "second"}

		evidence, ok := scorer.Best([]Comment{first, second})

		require.True(t, ok)
		assert.Equal(t, scorer.Score(first), evidence.Score)
	})

	t.Run("NothingAboveThreshold", func(t *testing.T) {
		_, ok := scorer.Best([]Comment{{Text: "first!"}, {Text: "recipe?", Likes: 12}})
		assert.False(t, ok)
	})
}
