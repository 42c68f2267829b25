package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rawsence/procheck/internal/model"
)

const (
	chunkTargetSize = 2000
	chunkOverlap    = 200
	chunkMinSize    = 100
	// How far a window boundary may be pulled back or pushed forward
	// while hunting for a sentence terminator. Bounded so one endless
	// run-on sentence cannot trigger an unbounded scan.
	boundaryLookBehind = 200
	boundaryLookAhead  = 100
)

var sentenceEndings = []string{". ", ".\n", "! ", "!\n", "? ", "?\n"}

// ChunkDocument splits one document's text into overlapping windows
// aligned on sentence terminators where possible. Pure and
// deterministic: identical text always yields the identical ordered
// chunk sequence. Chunk order within a document is significant since
// the generator prefers the first chunks under its per-upload cap.
func ChunkDocument(doc model.ExtractedDocument) []model.Chunk {
	text := doc.Text
	var chunks []model.Chunk
	start := 0
	for start < len(text) {
		end := start + chunkTargetSize
		if end < len(text) {
			end = snapToSentence(text, start, end)
			end = alignRuneStart(text, end)
		} else {
			end = len(text)
		}
		piece := strings.TrimSpace(text[start:end])
		if len(piece) >= chunkMinSize {
			index := len(chunks)
			chunks = append(chunks, model.Chunk{
				ChunkID:        fmt.Sprintf("%s_%d", doc.Filename, index),
				SourceFilename: doc.Filename,
				Text:           piece,
				CharCount:      len(piece),
				ChunkIndex:     index,
			})
		}
		if end >= len(text) {
			break
		}
		next := alignRuneStart(text, end-chunkOverlap)
		if next <= start {
			// Snapping can land close to the window start; force
			// progress rather than re-reading the same span forever.
			next = end
		}
		start = next
	}
	return chunks
}

// ChunkDocuments chunks each document in order and renumbers nothing:
// per-document indices restart at zero, global ordering follows the
// input slice.
func ChunkDocuments(docs []model.ExtractedDocument) []model.Chunk {
	var all []model.Chunk
	for _, doc := range docs {
		all = append(all, ChunkDocument(doc)...)
	}
	return all
}

// snapToSentence moves the raw boundary forward to just past the nearest
// sentence terminator inside [end-lookBehind, end+lookAhead]. Falls back
// to the raw boundary when the window holds no terminator.
func snapToSentence(text string, start, end int) int {
	from := end - boundaryLookBehind
	if from < start {
		from = start
	}
	to := end + boundaryLookAhead
	if to > len(text) {
		to = len(text)
	}
	for i := from; i < to; i++ {
		for _, ending := range sentenceEndings {
			if i+len(ending) <= len(text) && text[i:i+len(ending)] == ending {
				return i + len(ending)
			}
		}
	}
	return end
}

// alignRuneStart backs a byte offset up to the start of the rune it
// falls inside, so window boundaries never split multi-byte text.
func alignRuneStart(text string, i int) int {
	for i > 0 && i < len(text) && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}
