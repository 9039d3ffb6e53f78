// Package difftext computes structured line-level diffs between two text
// snapshots of the same article.
package difftext

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// BlockType classifies a run of consecutive lines in a diff.
type BlockType string

const (
	Same    BlockType = "same"
	Added   BlockType = "added"
	Removed BlockType = "removed"
)

// Block is a maximal run of consecutive lines sharing one classification.
// Concatenating Same+Removed blocks in order reconstructs the from-text;
// Same+Added reconstructs the to-text (up to trailing-newline
// normalization).
type Block struct {
	Type  BlockType `json:"type"`
	Lines []string  `json:"lines"`
}

// DiffLines diffs two texts line by line. Blocks appear in the natural
// document order of toText, with deletions at their original position.
// Identical inputs yield a single Same block, or no blocks when both texts
// are empty.
func DiffLines(fromText, toText string) []Block {
	from := toLines(fromText)
	to := toLines(toText)

	matcher := difflib.NewMatcher(from, to)

	var blocks []Block
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			blocks = appendRun(blocks, Same, from[op.I1:op.I2])
		case 'd':
			blocks = appendRun(blocks, Removed, from[op.I1:op.I2])
		case 'i':
			blocks = appendRun(blocks, Added, to[op.J1:op.J2])
		case 'r':
			blocks = appendRun(blocks, Removed, from[op.I1:op.I2])
			blocks = appendRun(blocks, Added, to[op.J1:op.J2])
		}
	}
	return blocks
}

// toLines normalizes the trailing newline away and splits, so that a text
// with and without a final "\n" produces the same line set and no spurious
// trailing-line artifact shows up in diffs.
func toLines(text string) []string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// appendRun merges runs of the same type into one block, even when the
// underlying matcher emits several consecutive opcodes of equal type.
func appendRun(blocks []Block, typ BlockType, lines []string) []Block {
	if len(lines) == 0 {
		return blocks
	}
	if n := len(blocks); n > 0 && blocks[n-1].Type == typ {
		blocks[n-1].Lines = append(blocks[n-1].Lines, lines...)
		return blocks
	}
	return append(blocks, Block{Type: typ, Lines: append([]string(nil), lines...)})
}
