package wordindex

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(texts ...string) []RecognizedWord {
	out := make([]RecognizedWord, len(texts))
	for i, text := range texts {
		out[i] = RecognizedWord{
			Text:        text,
			Confidence:  90,
			BoundingBox: BoundingBox{Left: i * 50, Top: 10, Width: 40, Height: 20},
		}
	}
	return out
}

func TestBuildPreservesOrder(t *testing.T) {
	in := words("In", "the", "sumer", "we", "went")
	ix := Build(in)

	require.Equal(t, len(in), ix.Len())
	assert.Equal(t, in, ix.Words())

	// Mutating the caller's slice must not leak into the index.
	in[0].Text = "Out"
	assert.Equal(t, "In", ix.At(0).Text)
}

func TestFindByText(t *testing.T) {
	ix := Build(words("The", "cat", "saw", "the", "THE", "dog"))

	tests := []struct {
		name          string
		target        string
		caseSensitive bool
		want          []int
	}{
		{name: "case insensitive", target: "the", want: []int{0, 3, 4}},
		{name: "case sensitive", target: "the", caseSensitive: true, want: []int{3}},
		{name: "surrounding whitespace", target: "  dog ", want: []int{5}},
		{name: "no match", target: "bird", want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ix.FindByText(tt.target, tt.caseSensitive)
			require.NotNil(t, got)
			require.Len(t, got, len(tt.want))
			for i, idx := range tt.want {
				assert.Equal(t, ix.At(idx), got[i])
			}
		})
	}
}

func TestFindRange(t *testing.T) {
	ix := Build(words("Last", "summer", "My", "family", "beach", "vacation", "was", "vacation"))

	t.Run("inclusive range", func(t *testing.T) {
		got := ix.FindRange("My", "vacation")
		require.Len(t, got, 4)
		assert.Equal(t, ix.Words()[2:6], got)
	})

	t.Run("start equals end", func(t *testing.T) {
		got := ix.FindRange("beach", "beach")
		require.Len(t, got, 1)
		assert.Equal(t, "beach", got[0].Text)
	})

	t.Run("missing start", func(t *testing.T) {
		assert.Empty(t, ix.FindRange("winter", "vacation"))
	})

	t.Run("end only before start", func(t *testing.T) {
		assert.Empty(t, ix.FindRange("beach", "summer"))
	})
}

func TestBoundingBoxDerivedFields(t *testing.T) {
	b := BoundingBox{Left: 10, Top: 20, Width: 31, Height: 11}
	assert.Equal(t, 41, b.X2())
	assert.Equal(t, 31, b.Y2())
	assert.Equal(t, 25, b.CenterX())
	assert.Equal(t, 25, b.CenterY())
	assert.Equal(t, 31, b.Rect().Dx())
}

func TestBoxFromPoints(t *testing.T) {
	box, ok := BoxFromPoints([]float64{10, 5, 50, 6, 49, 25, 11, 24})
	require.True(t, ok)
	assert.Equal(t, BoundingBox{Left: 10, Top: 5, Width: 40, Height: 20}, box)

	_, ok = BoxFromPoints([]float64{1, 2, 3})
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		word    RecognizedWord
		wantErr bool
	}{
		{name: "valid", word: words("ok")[0]},
		{name: "negative width", word: RecognizedWord{Text: "x", Confidence: 50, BoundingBox: BoundingBox{Width: -1, Height: 4}}, wantErr: true},
		{name: "missing box", word: RecognizedWord{Text: "x", Confidence: 50}, wantErr: true},
		{name: "confidence out of range", word: RecognizedWord{Text: "x", Confidence: 140, BoundingBox: BoundingBox{Width: 1, Height: 1}}, wantErr: true},
		{name: "confidence NaN", word: RecognizedWord{Text: "x", Confidence: math.NaN(), BoundingBox: BoundingBox{Width: 1, Height: 1}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.word.Validate(3)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var inputErr *InputError
			require.True(t, errors.As(err, &inputErr))
			assert.Equal(t, 3, inputErr.Index)
		})
	}
}
