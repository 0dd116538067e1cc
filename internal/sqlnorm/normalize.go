// Package sqlnorm normalizes SQL text for cache fingerprinting.
//
// Normalization strips comments and collapses whitespace so that two
// renderings of the same query produce the same canonical text, while string
// and quoted-identifier literals are preserved byte for byte. The comment
// text is kept available separately for directive annotations.
package sqlnorm

import (
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "LineComment", Pattern: `--[^\n]*`},
	{Name: "BlockComment", Pattern: `/\*(?:[^*]|\*+[^*/])*\*+/`},
	{Name: "String", Pattern: `'(?:''|[^'])*'`},
	{Name: "QuotedIdent", Pattern: `"(?:""|[^"])*"`},
	{Name: "BacktickIdent", Pattern: "`(?:``|[^`])*`"},
	{Name: "Word", Pattern: `[A-Za-z_][A-Za-z0-9_$]*`},
	{Name: "Number", Pattern: `\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`},
	{Name: "Operator", Pattern: "<>|<=|>=|!=|\\|\\||::|[^\\sA-Za-z0-9_'\"`]"},
	{Name: "Whitespace", Pattern: `\s+`},
})

var (
	lineCommentType  = sqlLexer.Symbols()["LineComment"]
	blockCommentType = sqlLexer.Symbols()["BlockComment"]
	whitespaceType   = sqlLexer.Symbols()["Whitespace"]
)

// Fallback comment stripping for text the lexer rejects. The patterns match
// the lexer's comment rules, but without tokenization they cannot tell a
// marker inside a broken literal from a real one.
var (
	lineCommentRegex  = regexp.MustCompile(`--[^\n]*`)
	blockCommentRegex = regexp.MustCompile(`/\*(?:[^*]|\*+[^*/])*\*+/`)
)

// Normalize returns the canonical form of the query: comments removed,
// remaining tokens joined by single spaces. Text that fails to tokenize
// (for example an unterminated literal) degrades to regex comment stripping
// plus whitespace collapsing; normalization never fails a query.
func Normalize(query string) string {
	tokens, ok := tokenize(query)
	if !ok {
		stripped := blockCommentRegex.ReplaceAllString(query, " ")
		stripped = lineCommentRegex.ReplaceAllString(stripped, " ")
		return strings.Join(strings.Fields(stripped), " ")
	}

	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		switch tok.Type {
		case lineCommentType, blockCommentType, whitespaceType:
			continue
		}
		parts = append(parts, tok.Value)
	}
	return strings.Join(parts, " ")
}

// Comments returns the text of every comment in the query, with the comment
// markers stripped and surrounding whitespace trimmed, in source order.
// Text that fails to tokenize yields no comments, so annotations in broken
// queries are ignored rather than guessed at.
func Comments(query string) []string {
	tokens, ok := tokenize(query)
	if !ok {
		return nil
	}

	var comments []string
	for _, tok := range tokens {
		switch tok.Type {
		case lineCommentType:
			comments = append(comments, strings.TrimSpace(strings.TrimPrefix(tok.Value, "--")))
		case blockCommentType:
			inner := strings.TrimSuffix(strings.TrimPrefix(tok.Value, "/*"), "*/")
			comments = append(comments, strings.TrimSpace(inner))
		}
	}
	return comments
}

func tokenize(query string) ([]lexer.Token, bool) {
	lex, err := sqlLexer.LexString("", query)
	if err != nil {
		return nil, false
	}

	var tokens []lexer.Token
	for {
		tok, err := lex.Next()
		if err != nil {
			return nil, false
		}
		if tok.EOF() {
			return tokens, true
		}
		tokens = append(tokens, tok)
	}
}
