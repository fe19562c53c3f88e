package parser

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the sub-word vocabulary used to size chunks.
const DefaultEncoding = "cl100k_base"

// TokenCounter counts model tokens in a piece of text.
type TokenCounter interface {
	CountTokens(text string) int
}

// TiktokenCounter counts tokens with a BPE vocabulary. It is safe for
// concurrent use and should be constructed once per process.
type TiktokenCounter struct {
	enc      *tiktoken.Tiktoken
	encoding string
}

// NewTiktokenCounter loads the named encoding. The vocabulary is fetched on
// first use and cached by tiktoken-go.
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc, encoding: encoding}, nil
}

// CountTokens returns the number of tokens in text.
func (c *TiktokenCounter) CountTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Encoding returns the vocabulary name.
func (c *TiktokenCounter) Encoding() string {
	return c.encoding
}
