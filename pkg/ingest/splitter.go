package ingest

// Splitter cuts text into overlapping chunks. Splitting is purely
// character based and deterministic: the same input always yields the
// same chunks.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

// NewSplitter creates a splitter with the given target size and
// overlap. Overlap must be smaller than the chunk size.
func NewSplitter(chunkSize, overlap int) *Splitter {
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap}
}

// Split cuts text into chunks of at most ChunkSize runes, each starting
// Overlap runes before the previous chunk's end. When a chunk would end
// mid-word, the cut backs up to the nearest space in the second half of
// the chunk.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.ChunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		// Prefer a word boundary, but never shrink the chunk below
		// half its target size.
		cut := end
		for cut > start+s.ChunkSize/2 && runes[cut-1] != ' ' && runes[cut-1] != '\n' {
			cut--
		}
		if cut <= start+s.ChunkSize/2 {
			cut = end
		}

		chunks = append(chunks, string(runes[start:cut]))

		next := cut - s.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}
