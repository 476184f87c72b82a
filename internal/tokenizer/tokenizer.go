package tokenizer

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// DefaultEncoding is the BPE encoding used by the gpt-3.5/gpt-4 chat models
const DefaultEncoding = string(tokenizer.Cl100kBase)

// Counter returns the number of tokens text encodes to
type Counter interface {
	Count(text string) (int, error)
}

// Tiktoken counts tokens with an OpenAI BPE encoding
type Tiktoken struct {
	encoding string
	codec    tokenizer.Codec
}

// ------------------------------------------------------------------------------------------------------
// NewTiktoken loads the named encoding, e.g. "cl100k_base"
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	codec, err := tokenizer.Get(tokenizer.Encoding(encoding))
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer %q: %w", encoding, err)
	}

	return &Tiktoken{encoding: encoding, codec: codec}, nil
}

// ------------------------------------------------------------------------------------------------------
func (t *Tiktoken) Count(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	ids, _, err := t.codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("failed to encode content: %w", err)
	}
	return len(ids), nil
}

// ------------------------------------------------------------------------------------------------------
// Encoding returns the name of the loaded encoding
func (t *Tiktoken) Encoding() string {
	return t.encoding
}

// ------------------------------------------------------------------------------------------------------
// CountAll sums the token counts of texts
func CountAll(counter Counter, texts ...string) (int, error) {
	total := 0
	for _, text := range texts {
		n, err := counter.Count(text)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
