// Package tokenizer implements a vocabulary-file subword tokenizer for
// model directories laid out the Hugging Face way (vocab.json plus
// tokenizer_config.json). Encoding uses SentencePiece-style word-prefix
// markers with greedy longest-match segmentation.
package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	vocabFilename  = "vocab.json"
	configFilename = "tokenizer_config.json"

	// wordPrefix marks the start of a word in SentencePiece vocabularies.
	wordPrefix = "▁"
)

// Tokenizer converts between text and token ids using a fixed
// vocabulary.
type Tokenizer struct {
	config      Config
	vocab       map[string]int64
	inverse     map[int64]string
	specialIDs  map[int64]struct{}
	unkID       int64
	padID       int64
	eosID       int64
	bosID       int64
	maxPieceLen int
}

// Load reads vocab.json and tokenizer_config.json from a model
// directory.
func Load(dir string) (*Tokenizer, error) {
	vocabPath := filepath.Join(dir, vocabFilename)
	data, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: failed to read vocabulary: %w", err)
	}

	var vocab map[string]int64
	if err := json.Unmarshal(data, &vocab); err != nil {
		return nil, fmt.Errorf("tokenizer: invalid vocabulary file %s: %w", vocabPath, err)
	}

	var config Config
	configPath := filepath.Join(dir, configFilename)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("tokenizer: invalid tokenizer config %s: %w", configPath, err)
		}
	}
	config.NormalizeConfig()

	return New(vocab, config)
}

// New constructs a tokenizer from an in-memory vocabulary and config.
func New(vocab map[string]int64, config Config) (*Tokenizer, error) {
	if len(vocab) == 0 {
		return nil, fmt.Errorf("tokenizer: empty vocabulary")
	}
	config.NormalizeConfig()

	t := &Tokenizer{
		config:     config,
		vocab:      vocab,
		inverse:    make(map[int64]string, len(vocab)),
		specialIDs: make(map[int64]struct{}, 4),
	}

	for piece, id := range vocab {
		t.inverse[id] = piece
		if n := len([]rune(piece)); n > t.maxPieceLen {
			t.maxPieceLen = n
		}
	}

	var ok bool
	if t.unkID, ok = vocab[config.UnkToken]; !ok {
		return nil, fmt.Errorf("tokenizer: unknown token %q missing from vocabulary", config.UnkToken)
	}
	if t.padID, ok = vocab[config.PadToken]; !ok {
		t.padID = t.unkID
	}
	if t.eosID, ok = vocab[config.EosToken]; !ok {
		t.eosID = t.padID
	}
	if config.BosToken != "" {
		if id, ok := vocab[config.BosToken]; ok {
			t.bosID = id
			t.specialIDs[id] = struct{}{}
		}
	}
	t.specialIDs[t.unkID] = struct{}{}
	t.specialIDs[t.padID] = struct{}{}
	t.specialIDs[t.eosID] = struct{}{}

	return t, nil
}

// PadID returns the padding token id.
func (t *Tokenizer) PadID() int64 { return t.padID }

// EosID returns the end-of-sequence token id.
func (t *Tokenizer) EosID() int64 { return t.eosID }

// VocabSize returns the number of vocabulary entries.
func (t *Tokenizer) VocabSize() int { return len(t.vocab) }

// Encode encodes a single sentence into token ids. If addEOS is true
// the end-of-sequence id is appended.
func (t *Tokenizer) Encode(text string, addEOS bool) []int64 {
	var ids []int64
	for _, word := range strings.Fields(text) {
		ids = append(ids, t.encodeWord(wordPrefix+word)...)
	}
	if addEOS {
		ids = append(ids, t.eosID)
	}
	if t.config.ModelMaxLength > 0 && len(ids) > t.config.ModelMaxLength {
		ids = ids[:t.config.ModelMaxLength]
	}
	return ids
}

// encodeWord segments one prefixed word greedily, longest vocabulary
// match first, falling back to the unknown id one rune at a time.
func (t *Tokenizer) encodeWord(word string) []int64 {
	runes := []rune(word)
	ids := make([]int64, 0, len(runes))

	for start := 0; start < len(runes); {
		end := min(start+t.maxPieceLen, len(runes))
		matched := false
		for ; end > start; end-- {
			if id, ok := t.vocab[string(runes[start:end])]; ok {
				ids = append(ids, id)
				start = end
				matched = true
				break
			}
		}
		if !matched {
			ids = append(ids, t.unkID)
			start++
		}
	}
	return ids
}

// EncodeBatch encodes a batch of sentences and returns the padded id
// matrix plus an attention mask with 1 for tokens and 0 for padding.
func (t *Tokenizer) EncodeBatch(texts []string) (inputIDs [][]int64, attentionMask [][]int64) {
	inputIDs = make([][]int64, len(texts))
	maxLen := 0
	for i, text := range texts {
		inputIDs[i] = t.Encode(text, true)
		if len(inputIDs[i]) > maxLen {
			maxLen = len(inputIDs[i])
		}
	}

	attentionMask = make([][]int64, len(texts))
	for i, ids := range inputIDs {
		mask := make([]int64, maxLen)
		padded := make([]int64, maxLen)
		copy(padded, ids)
		for j := range maxLen {
			if j < len(ids) {
				mask[j] = 1
			} else {
				padded[j] = t.padID
			}
		}
		inputIDs[i] = padded
		attentionMask[i] = mask
	}
	return inputIDs, attentionMask
}

// Decode converts token ids back to a sentence. If skipSpecial is true,
// EOS, PAD, BOS and UNK ids are dropped before decoding.
func (t *Tokenizer) Decode(ids []int64, skipSpecial bool) string {
	var sb strings.Builder
	for _, id := range ids {
		if skipSpecial {
			if _, ok := t.specialIDs[id]; ok {
				continue
			}
		}
		piece, ok := t.inverse[id]
		if !ok {
			continue
		}
		sb.WriteString(piece)
	}
	return strings.TrimSpace(strings.ReplaceAll(sb.String(), wordPrefix, " "))
}

// IDsToTokens maps ids to their vocabulary pieces, optionally dropping
// special tokens. Unknown ids map to the unknown token piece.
func (t *Tokenizer) IDsToTokens(ids []int64, skipSpecial bool) []string {
	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		if skipSpecial {
			if _, ok := t.specialIDs[id]; ok {
				continue
			}
		}
		piece, ok := t.inverse[id]
		if !ok {
			piece = t.config.UnkToken
		}
		tokens = append(tokens, piece)
	}
	return tokens
}

// TokensToIDs maps vocabulary pieces back to ids. Unknown pieces map to
// the unknown id.
func (t *Tokenizer) TokensToIDs(tokens []string) []int64 {
	ids := make([]int64, len(tokens))
	for i, tok := range tokens {
		id, ok := t.vocab[tok]
		if !ok {
			id = t.unkID
		}
		ids[i] = id
	}
	return ids
}
