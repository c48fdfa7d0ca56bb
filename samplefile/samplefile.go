// Package samplefile loads and saves the ASCII sample text file format
// used to feed Out_Write from a file instead of a generated buffer
// (spec.md §6 "Sample text file format"). Grammar: a stream of 32-bit
// decimal or 0x-prefixed hexadecimal integers separated by any of space,
// comma, tab, or newline; "//", "#", and ";" comments run to end of line;
// "/* ... */" comments may span lines; "." and "_" inside a number are
// visual separators and are stripped before parsing.
//
// No pack example parses this particular number-stream grammar, so this
// follows boardconfig's hand-rolled-scanner shape rather than a
// third-party parser, matching the same lookup-function plus
// struct-of-defaults idiom used there.
package samplefile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Load reads a sample file at path and returns its 32-bit words.
// wordsPerSample must divide the total word count (spec.md §6: "Sample
// length must be a multiple of the configured sample-word count").
func Load(path string, wordsPerSample int) ([]uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("samplefile: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f, wordsPerSample)
}

// Parse reads a sample stream from r.
func Parse(r io.Reader, wordsPerSample int) ([]uint32, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("samplefile: read: %w", err)
	}
	runes := []rune(string(raw))

	var words []uint32
	var tok strings.Builder
	inBlockComment := false
	inLineComment := false

	flush := func() error {
		if tok.Len() == 0 {
			return nil
		}
		w, err := parseWord(tok.String())
		tok.Reset()
		if err != nil {
			return err
		}
		words = append(words, w)
		return nil
	}

	for i := 0; i < len(runes); i++ {
		c := runes[i]

		if inLineComment {
			if c == '\n' {
				inLineComment = false
			}
			continue
		}
		if inBlockComment {
			if c == '*' && i+1 < len(runes) && runes[i+1] == '/' {
				inBlockComment = false
				i++
			}
			continue
		}
		switch {
		case c == '/' && i+1 < len(runes) && runes[i+1] == '/':
			if err := flush(); err != nil {
				return nil, err
			}
			inLineComment = true
			i++
		case c == '/' && i+1 < len(runes) && runes[i+1] == '*':
			if err := flush(); err != nil {
				return nil, err
			}
			inBlockComment = true
			i++
		case c == '#' || c == ';':
			if err := flush(); err != nil {
				return nil, err
			}
			inLineComment = true
		case c == ' ' || c == ',' || c == '\t' || c == '\n' || c == '\r':
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			tok.WriteRune(c)
		}
	}
	if inBlockComment {
		return nil, fmt.Errorf("samplefile: unterminated /* comment")
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if wordsPerSample > 0 && len(words)%wordsPerSample != 0 {
		return nil, fmt.Errorf("samplefile: %d words is not a multiple of %d words/sample", len(words), wordsPerSample)
	}
	return words, nil
}

// parseWord strips visual "." and "_" separators and parses a decimal or
// 0x-prefixed hex 32-bit integer.
func parseWord(tok string) (uint32, error) {
	clean := strings.NewReplacer(".", "", "_", "").Replace(tok)
	if clean == "" {
		return 0, fmt.Errorf("samplefile: empty numeric token %q", tok)
	}
	base := 10
	if strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
		clean = clean[2:]
		base = 16
	}
	n, err := strconv.ParseUint(clean, base, 32)
	if err != nil {
		return 0, fmt.Errorf("samplefile: bad integer %q: %w", tok, err)
	}
	return uint32(n), nil
}

// Save writes words to path, one decimal value per line, so a round trip
// through Load is byte-for-byte idempotent modulo the whitespace/comments
// the grammar permits (spec.md §8: "sample-file save then load is
// byte-for-byte idempotent modulo whitespace/comments").
func Save(path string, words []uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("samplefile: create %s: %w", path, err)
	}
	defer f.Close()
	return Write(f, words)
}

// Write writes words to w, one decimal value per line.
func Write(w io.Writer, words []uint32) error {
	bw := bufio.NewWriter(w)
	for _, word := range words {
		if _, err := fmt.Fprintf(bw, "%d\n", word); err != nil {
			return fmt.Errorf("samplefile: write: %w", err)
		}
	}
	return bw.Flush()
}

// WordsToBytes packs words little-endian into a byte buffer suitable for
// Out_Write.
func WordsToBytes(words []uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		out[4*i] = byte(w)
		out[4*i+1] = byte(w >> 8)
		out[4*i+2] = byte(w >> 16)
		out[4*i+3] = byte(w >> 24)
	}
	return out
}
