package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillgrove/goshell/internal/token"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	t.Run("simple command", func(t *testing.T) {
		t.Parallel()
		assert := assert.New(t)

		toks := token.Tokenize("echo hello world")
		require.Len(t, toks, 3)
		assert.Equal("echo", toks[0].String())
		assert.True(toks[0].StringP())
		assert.Equal("world", toks[2].String())
	})

	t.Run("redirections and pipes", func(t *testing.T) {
		t.Parallel()
		assert := assert.New(t)

		toks := token.Tokenize("cat < in.txt | tr a-z A-Z > out.txt")
		kinds := make([]token.Kind, len(toks))
		for i, tk := range toks {
			kinds[i] = tk.Kind
		}
		assert.Equal([]token.Kind{
			token.Word, token.Input, token.Word,
			token.Pipe,
			token.Word, token.Word, token.Word,
			token.Output, token.Word,
		}, kinds)
	})

	t.Run("background marker", func(t *testing.T) {
		t.Parallel()
		assert := assert.New(t)

		toks := token.Tokenize("sleep 5 &")
		require.Len(t, toks, 3)
		assert.Equal(token.Background, toks[2].Kind)
	})

	t.Run("operator glued to word", func(t *testing.T) {
		t.Parallel()
		assert := assert.New(t)

		toks := token.Tokenize("cat<in.txt>out.txt")
		require.Len(t, toks, 5)
		assert.Equal(token.Word, toks[0].Kind)
		assert.Equal(token.Input, toks[1].Kind)
		assert.Equal(token.Word, toks[2].Kind)
		assert.Equal(token.Output, toks[3].Kind)
	})
}

func TestValidateBackground(t *testing.T) {
	t.Parallel()

	t.Run("legal trailing ampersand", func(t *testing.T) {
		t.Parallel()
		toks := token.Tokenize("sleep 5 &")
		assert.NoError(t, token.ValidateBackground(toks))
	})

	t.Run("illegal mid-line ampersand", func(t *testing.T) {
		t.Parallel()
		toks := token.Tokenize("sleep 5 & echo done")
		assert.Error(t, token.ValidateBackground(toks))
	})
}

func TestSplit(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	toks := token.Tokenize("cat file | tr a-z A-Z | wc -l")
	stages := token.Split(toks)
	require.Len(t, stages, 3)
	assert.Equal("cat", stages[0][0].String())
	assert.Equal("tr", stages[1][0].String())
	assert.Equal("wc", stages[2][0].String())
}
