package text

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenType_String(t *testing.T) {
	tests := []struct {
		input    tokenType
		expected string
	}{
		{tokenKeyword, "keyword"},
		{tokenUN, "uN"},
		{tokenSN, "sN"},
		{tokenFN, "fN"},
		{tokenString, "string"},
		{tokenID, "id"},
		{tokenLParen, "("},
		{tokenRParen, ")"},
		{tokenReserved, "reserved"},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.expected, func(t *testing.T) {
			require.Equal(t, tc.expected, tc.input.String())
		})
	}
}

func TestTokenizer(t *testing.T) {
	toks, err := tokenizeAll(`(module $m ;; line comment
  (; block (; nested ;) comment ;)
  (func $f (param $x i32) (result i32) local.get $x))`)
	require.NoError(t, err)

	var got []tokenType
	for _, tk := range toks {
		got = append(got, tk.typ)
	}
	require.Equal(t, []tokenType{
		tokenLParen, tokenKeyword, tokenID,
		tokenLParen, tokenKeyword, tokenID, tokenLParen, tokenKeyword, tokenID, tokenKeyword, tokenRParen,
		tokenLParen, tokenKeyword, tokenKeyword, tokenRParen,
		tokenKeyword, tokenID, tokenRParen, tokenRParen,
	}, got)
}

func TestTokenizer_String(t *testing.T) {
	toks, err := tokenizeAll(`"hello\20world"`)
	require.NoError(t, err)
	require.Len(t, toks, 1)
	require.Equal(t, "hello world", toks[0].value)
}

func TestTokenizer_Reserved(t *testing.T) {
	toks, err := tokenizeAll(`1abc$`)
	require.NoError(t, err)
	require.Equal(t, tokenReserved, toks[0].typ)
}

func tokenizeAll(src string) ([]*token, error) {
	tz := newTokenizer([]byte(src))
	var out []*token
	for {
		tok, err := tz.next()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return out, nil
		}
		out = append(out, tok)
	}
}
